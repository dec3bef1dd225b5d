package core

import "sort"

// CategoryAmount represents an amount aggregated by category key.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// Summary bundles the dashboard figures derived from one collection.
type Summary struct {
	Count       int
	Total       Money
	Paid        Money
	Unpaid      Money
	PaidCount   int
	UnpaidCount int
	ByCategory  []CategoryAmount
}

// TotalAmount sums present amounts; absent amounts count as zero.
func TotalAmount(records []Record) Money {
	var cents int64
	for _, r := range records {
		cents += r.AmountCents()
	}
	return Money{Cents: cents}
}

// PaidSum sums the amounts of records whose paid flag is true.
func PaidSum(records []Record) Money {
	var cents int64
	for _, r := range records {
		if r.IsPaid() {
			cents += r.AmountCents()
		}
	}
	return Money{Cents: cents}
}

// UnpaidSum sums the amounts of records whose paid flag is not true.
func UnpaidSum(records []Record) Money {
	var cents int64
	for _, r := range records {
		if !r.IsPaid() {
			cents += r.AmountCents()
		}
	}
	return Money{Cents: cents}
}

func PaidCount(records []Record) int {
	n := 0
	for _, r := range records {
		if r.IsPaid() {
			n++
		}
	}
	return n
}

func UnpaidCount(records []Record) int {
	return len(records) - PaidCount(records)
}

// CategoryTotals sums amounts per category key and orders the result by
// descending amount. Equal totals keep their first-seen order.
func CategoryTotals(records []Record) []CategoryAmount {
	index := map[Category]int{}
	var out []CategoryAmount
	for _, r := range records {
		key := r.CategoryKey()
		i, seen := index[key]
		if !seen {
			i = len(out)
			index[key] = i
			out = append(out, CategoryAmount{Category: key})
		}
		out[i].Amount.Cents += r.AmountCents()
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Amount.Cents > out[b].Amount.Cents
	})
	return out
}

// Summarize computes every dashboard figure in one place.
func Summarize(records []Record) Summary {
	return Summary{
		Count:       len(records),
		Total:       TotalAmount(records),
		Paid:        PaidSum(records),
		Unpaid:      UnpaidSum(records),
		PaidCount:   PaidCount(records),
		UnpaidCount: UnpaidCount(records),
		ByCategory:  CategoryTotals(records),
	}
}
