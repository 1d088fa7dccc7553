package core

// BucketTotal aggregates the overdue installments of one aging bucket.
type BucketTotal struct {
	Bucket  AgingBucket
	Count   int
	Balance Money
}

// OverdueItem is one line of the aging report.
type OverdueItem struct {
	Installment Installment
	DaysOverdue int
	Bucket      AgingBucket
}

// AgingReport groups open overdue installments into aging buckets.
type AgingReport struct {
	AsOf    Date
	Buckets []BucketTotal
	Items   []OverdueItem
	Total   Money
}

// LedgerSummary is the dashboard view of installments relative to a date.
type LedgerSummary struct {
	AsOf        Date
	Overdue     int
	DueToday    int
	DueSoon     int // due within the next soonDays days, today excluded
	Paid        int
	TotalFace   Money
	OverdueOpen Money
}

// BuildAgingReport classifies installments on asOf and groups the overdue
// ones by bucket. Bucket totals carry the outstanding balance, not the face
// value, so partial payments reduce what is reported as delinquent.
func BuildAgingReport(installments []Installment, asOf Date) AgingReport {
	r := AgingReport{AsOf: asOf}
	totals := make(map[AgingBucket]*BucketTotal, len(Buckets))
	for _, b := range Buckets {
		bt := &BucketTotal{Bucket: b}
		totals[b] = bt
	}
	for _, inst := range installments {
		c := Classify(inst, asOf)
		if c.Kind != Overdue {
			continue
		}
		b := BucketFor(c.DaysOverdue)
		bt := totals[b]
		bt.Count++
		bt.Balance = bt.Balance.Add(inst.Balance())
		r.Total = r.Total.Add(inst.Balance())
		r.Items = append(r.Items, OverdueItem{Installment: inst, DaysOverdue: c.DaysOverdue, Bucket: b})
	}
	for _, b := range Buckets {
		r.Buckets = append(r.Buckets, *totals[b])
	}
	return r
}

// Summarize counts installments by their position relative to asOf.
func Summarize(installments []Installment, asOf Date, soonDays int) LedgerSummary {
	s := LedgerSummary{AsOf: asOf}
	for _, inst := range installments {
		s.TotalFace = s.TotalFace.Add(inst.FaceValue)
		if inst.Status == InstallmentPaid {
			s.Paid++
			continue
		}
		c := Classify(inst, asOf)
		switch c.Kind {
		case Overdue:
			s.Overdue++
			s.OverdueOpen = s.OverdueOpen.Add(inst.Balance())
		case DueToday:
			s.DueToday++
		case OnTime:
			if c.DaysUntil <= soonDays {
				s.DueSoon++
			}
		}
	}
	return s
}
