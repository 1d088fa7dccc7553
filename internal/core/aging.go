package core

type DueKind int

const (
	// NotApplicable covers Paid and Cancelled installments.
	NotApplicable DueKind = iota
	OnTime
	DueToday
	Overdue
)

func (k DueKind) String() string {
	switch k {
	case OnTime:
		return "on_time"
	case DueToday:
		return "due_today"
	case Overdue:
		return "overdue"
	default:
		return "not_applicable"
	}
}

// Classification places one installment relative to a reference date.
type Classification struct {
	Kind        DueKind
	DaysOverdue int // > 0 only when Kind is Overdue
	DaysUntil   int // >= 0 when Kind is OnTime or DueToday
}

// Classify places inst relative to asOf. Partially paid installments are
// still open and are classified by their due date like Pending ones.
func Classify(inst Installment, asOf Date) Classification {
	if !inst.IsPayable() {
		return Classification{Kind: NotApplicable}
	}
	days := asOf.DaysUntil(inst.DueDate)
	switch {
	case days < 0:
		return Classification{Kind: Overdue, DaysOverdue: -days}
	case days == 0:
		return Classification{Kind: DueToday}
	default:
		return Classification{Kind: OnTime, DaysUntil: days}
	}
}

type AgingBucket string

const (
	Bucket0To30  AgingBucket = "0-30"
	Bucket31To60 AgingBucket = "31-60"
	Bucket61To90 AgingBucket = "61-90"
	Bucket90Plus AgingBucket = "90+"
)

// Buckets lists the aging buckets in report order.
var Buckets = []AgingBucket{Bucket0To30, Bucket31To60, Bucket61To90, Bucket90Plus}

// BucketFor maps a positive number of days overdue to its bucket.
func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue <= 30:
		return Bucket0To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}
