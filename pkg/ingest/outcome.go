package ingest

// Outcome is the result of ingesting one path.
type Outcome int

const (
	Delivered Outcome = iota
	SkippedDuplicate
	SkippedUnreadable
	SkippedUnmapped
	Failed
)

// Outcomes lists every outcome in declaration order.
var Outcomes = []Outcome{Delivered, SkippedDuplicate, SkippedUnreadable, SkippedUnmapped, Failed}

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedUnreadable:
		return "skipped_unreadable"
	case SkippedUnmapped:
		return "skipped_unmapped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
