package gateway

import (
	"strings"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"google.golang.org/genai"
)

func freeTextPrompt(text, today string) string {
	var b strings.Builder
	b.WriteString("分析以下记账文本并提取结构化数据：'" + text + "'。\n")
	b.WriteString("请直接返回JSON格式。\n")
	b.WriteString("类型必须是 'income' 或 'expense'。\n")
	b.WriteString("日期格式为 YYYY-MM-DD。\n")
	b.WriteString("如果没有指定日期，使用今天：" + today + "。\n")
	b.WriteString("可能的类别：" + strings.Join(domain.CategoryNames(), ", ") + "。")
	return b.String()
}

func receiptPrompt() string {
	return "从这张收据图片中提取总金额、类别、简短描述和日期。返回JSON格式。\n" +
		"日期格式为 YYYY-MM-DD。\n" +
		"可能的类别：" + strings.Join(domain.CategoryNames(), ", ") + "。"
}

// ledgerText renders one "date: ±amount (category - description)" line per
// transaction, in the order given.
func ledgerText(txs []domain.Transaction) string {
	lines := make([]string, len(txs))
	for i, tx := range txs {
		lines[i] = tx.LedgerLine()
	}
	return strings.Join(lines, "\n")
}

func insightPrompt(txs []domain.Transaction) string {
	return "作为财务专家，分析以下交易记录并提供简短的总结、3条省钱建议及消费风险评估（low/medium/high）：\n" + ledgerText(txs)
}

func freeTextSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":      {Type: genai.TypeNumber},
			"type":        {Type: genai.TypeString, Enum: []string{string(domain.TypeIncome), string(domain.TypeExpense)}},
			"category":    {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"date":        {Type: genai.TypeString},
		},
		Required: []string{"amount", "type", "category", "description", "date"},
	}
}

func receiptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":      {Type: genai.TypeNumber},
			"category":    {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"date":        {Type: genai.TypeString},
		},
		Required: []string{"amount", "category", "description", "date"},
	}
}

func insightSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {Type: genai.TypeString},
			"suggestions": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"riskLevel": {Type: genai.TypeString, Enum: []string{string(domain.RiskLow), string(domain.RiskMedium), string(domain.RiskHigh)}},
		},
		Required: []string{"summary", "suggestions", "riskLevel"},
	}
}

func jsonConfig(schema *genai.Schema) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
}
