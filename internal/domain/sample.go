package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SampleTransactions returns the demo ledger, newest insertion first.
func SampleTransactions() []Transaction {
	return []Transaction{
		{ID: "t1", Amount: decimal.RequireFromString("35.5"), Type: TypeExpense, Category: "餐饮", Description: "午餐外卖", Date: civil.Date{Year: 2024, Month: 3, Day: 20}},
		{ID: "t2", Amount: decimal.RequireFromString("5000"), Type: TypeIncome, Category: "工资", Description: "3月基本工资", Date: civil.Date{Year: 2024, Month: 3, Day: 15}},
		{ID: "t3", Amount: decimal.RequireFromString("120"), Type: TypeExpense, Category: "购物", Description: "超市日用品", Date: civil.Date{Year: 2024, Month: 3, Day: 18}},
		{ID: "t4", Amount: decimal.RequireFromString("15"), Type: TypeExpense, Category: "交通", Description: "地铁打卡", Date: civil.Date{Year: 2024, Month: 3, Day: 19}},
		{ID: "t5", Amount: decimal.RequireFromString("45"), Type: TypeExpense, Category: "娱乐", Description: "电影票", Date: civil.Date{Year: 2024, Month: 3, Day: 19}},
	}
}
