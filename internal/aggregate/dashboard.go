package aggregate

import "github.com/dvloznov/wealthwisdom/internal/domain"

// Dashboard is everything the overview screen renders.
type Dashboard struct {
	Totals            Totals               `json:"totals"`
	ExpenseByCategory []CategorySum        `json:"expense_by_category"`
	Trend             []TrendPoint         `json:"trend"`
	Recent            []domain.Transaction `json:"recent"`
	Count             int                  `json:"count"`
}

// Snapshot computes a Dashboard over txs, which must be newest first.
func Snapshot(txs []domain.Transaction, windowDays, recent int) Dashboard {
	if recent < 0 {
		recent = 0
	}
	if recent > len(txs) {
		recent = len(txs)
	}

	latest := make([]domain.Transaction, recent)
	copy(latest, txs[:recent])

	return Dashboard{
		Totals:            ComputeTotals(txs),
		ExpenseByCategory: ExpenseByCategory(txs),
		Trend:             Trend(txs, windowDays),
		Recent:            latest,
		Count:             len(txs),
	}
}
