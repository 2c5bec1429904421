package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/shopspring/decimal"
)

type transactionPayload struct {
	Amount      *decimal.Decimal `json:"amount"`
	Type        *string          `json:"type"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
}

type insightPayload struct {
	Summary     *string  `json:"summary"`
	Suggestions []string `json:"suggestions"`
	RiskLevel   *string  `json:"riskLevel"`
}

// cleanModelJSON strips Markdown code fences the model sometimes wraps its
// answer in, despite being asked for raw JSON.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = strings.TrimSpace(s[idx+1:])
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}

// decodeStrict decodes exactly one JSON object into v, rejecting unknown
// fields and anything after the object.
func decodeStrict(raw string, v any) error {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decodeStrict: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decodeStrict: unexpected data after JSON object")
	}
	return nil
}

func decodeFreeText(raw string) (domain.TransactionInput, error) {
	var p transactionPayload
	if err := decodeStrict(raw, &p); err != nil {
		return domain.TransactionInput{}, err
	}
	if err := p.requireCommon(); err != nil {
		return domain.TransactionInput{}, err
	}
	if p.Type == nil {
		return domain.TransactionInput{}, missingField("type")
	}
	t := domain.TransactionType(*p.Type)
	if !t.Valid() {
		return domain.TransactionInput{}, fmt.Errorf("decodeFreeText: type %q is not income or expense", *p.Type)
	}

	in := p.input()
	in.Type = t
	return in, nil
}

// decodeReceipt ignores a type field if the model volunteers one; the caller
// applies the expense default.
func decodeReceipt(raw string) (domain.TransactionInput, error) {
	var p transactionPayload
	if err := decodeStrict(raw, &p); err != nil {
		return domain.TransactionInput{}, err
	}
	if err := p.requireCommon(); err != nil {
		return domain.TransactionInput{}, err
	}
	return p.input(), nil
}

func decodeInsight(raw string) (domain.InsightReport, error) {
	var p insightPayload
	if err := decodeStrict(raw, &p); err != nil {
		return domain.InsightReport{}, err
	}
	switch {
	case p.Summary == nil:
		return domain.InsightReport{}, missingField("summary")
	case p.Suggestions == nil:
		return domain.InsightReport{}, missingField("suggestions")
	case p.RiskLevel == nil:
		return domain.InsightReport{}, missingField("riskLevel")
	}
	risk := domain.RiskLevel(*p.RiskLevel)
	if !risk.Valid() {
		return domain.InsightReport{}, fmt.Errorf("decodeInsight: riskLevel %q is not low, medium or high", *p.RiskLevel)
	}

	return domain.InsightReport{
		Summary:     *p.Summary,
		Suggestions: p.Suggestions,
		RiskLevel:   risk,
	}, nil
}

func (p transactionPayload) requireCommon() error {
	switch {
	case p.Amount == nil:
		return missingField("amount")
	case p.Category == nil:
		return missingField("category")
	case p.Description == nil:
		return missingField("description")
	case p.Date == nil:
		return missingField("date")
	}
	return nil
}

func (p transactionPayload) input() domain.TransactionInput {
	amount := *p.Amount
	return domain.TransactionInput{
		Amount:      &amount,
		Category:    *p.Category,
		Description: *p.Description,
		Date:        *p.Date,
	}
}

func missingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
