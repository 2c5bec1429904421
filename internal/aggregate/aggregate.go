// Package aggregate derives dashboard figures from a transaction snapshot.
// All functions are pure and recompute from scratch on every call.
package aggregate

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTrendWindow is the number of date groups kept by Trend.
const DefaultTrendWindow = 7

// DefaultRecentLimit is the number of newest transactions in a Dashboard.
const DefaultRecentLimit = 5

// Totals holds the income and expense sums and their difference.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategorySum is the expense total of one category.
type CategorySum struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	// Share is Amount as a fraction of all expenses, rounded to 4 places.
	Share   decimal.Decimal `json:"share"`
	Display domain.Category `json:"display"`
}

// TrendPoint is the income and expense of one date.
type TrendPoint struct {
	Date    civil.Date      `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// ComputeTotals sums income and expense amounts.
func ComputeTotals(txs []domain.Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case domain.TypeIncome:
			income = income.Add(tx.Amount)
		case domain.TypeExpense:
			expense = expense.Add(tx.Amount)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// ExpenseByCategory groups expenses by category name in first-occurrence order.
// Names missing from the registry are grouped as-is and displayed with the
// fallback entry.
func ExpenseByCategory(txs []domain.Transaction) []CategorySum {
	groups := []CategorySum{}
	index := make(map[string]int)
	total := decimal.Zero

	for _, tx := range txs {
		if tx.Type != domain.TypeExpense {
			continue
		}
		total = total.Add(tx.Amount)
		if i, ok := index[tx.Category]; ok {
			groups[i].Amount = groups[i].Amount.Add(tx.Amount)
			continue
		}
		index[tx.Category] = len(groups)
		groups = append(groups, CategorySum{
			Category: tx.Category,
			Amount:   tx.Amount,
			Display:  domain.LookupCategory(tx.Category),
		})
	}

	for i := range groups {
		groups[i].Share = decimal.Zero
		if !total.IsZero() {
			groups[i].Share = groups[i].Amount.DivRound(total, 4)
		}
	}

	return groups
}

// Trend groups all transactions by date, sorts the groups by calendar date and
// keeps the last windowDays of them. Dates without transactions are absent,
// so the result covers the most recent dates present, not the last calendar
// days. A non-positive window keeps every group.
func Trend(txs []domain.Transaction, windowDays int) []TrendPoint {
	points := []TrendPoint{}
	index := make(map[civil.Date]int)

	for _, tx := range txs {
		i, ok := index[tx.Date]
		if !ok {
			i = len(points)
			index[tx.Date] = i
			points = append(points, TrendPoint{Date: tx.Date, Income: decimal.Zero, Expense: decimal.Zero})
		}
		switch tx.Type {
		case domain.TypeIncome:
			points[i].Income = points[i].Income.Add(tx.Amount)
		case domain.TypeExpense:
			points[i].Expense = points[i].Expense.Add(tx.Amount)
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	if windowDays > 0 && len(points) > windowDays {
		points = points[len(points)-windowDays:]
	}

	return points
}
