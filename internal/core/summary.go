package core

// Summary holds the column sums shown above the ledger. It is not a
// settlement: nobody's balance against the other is computed here.
type Summary struct {
	Count       int
	Total       Money
	Share1Total Money // sum of person1 shares
	Share2Total Money // sum of person2 shares
	Spent1      Money // sum of totals paid by person1
	Spent2      Money // sum of totals paid by person2
}

func Summarize(records []ExpenseRecord) Summary {
	var s Summary
	for _, r := range records {
		s.Count++
		s.Total = s.Total.Add(r.Total)
		s.Share1Total = s.Share1Total.Add(r.Share1)
		s.Share2Total = s.Share2Total.Add(r.Share2)
		switch r.PaidBy {
		case Person1:
			s.Spent1 = s.Spent1.Add(r.Total)
		case Person2:
			s.Spent2 = s.Spent2.Add(r.Total)
		}
	}
	return s
}
