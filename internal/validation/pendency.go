package validation

// PendencyErrorThreshold splits the pendency code space returned by the
// stored procedures: codes below it are advisory, codes at or above it
// failed a business check.
const PendencyErrorThreshold = 200000

// PendencyClass is the outcome of classifying a pendency code.
type PendencyClass int

const (
	PendencyNone PendencyClass = iota
	PendencyWarning
	PendencyError
)

var pendencyClassLabels = map[PendencyClass]string{
	PendencyNone:    "none",
	PendencyWarning: "warning",
	PendencyError:   "error",
}

func (p PendencyClass) String() string {
	if label, ok := pendencyClassLabels[p]; ok {
		return label
	}
	return "none"
}

// ClassifyPendency maps a nullable pendency code onto its class. A nil code
// means the posting went through clean.
func ClassifyPendency(pendencyID *int64) PendencyClass {
	switch {
	case pendencyID == nil:
		return PendencyNone
	case *pendencyID < PendencyErrorThreshold:
		return PendencyWarning
	default:
		return PendencyError
	}
}
