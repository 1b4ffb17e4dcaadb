package booking

import (
	"strings"

	"cloud.google.com/go/civil"

	"github.com/xkilldash9x/parkbook/internal/page"
)

// Result is the terminal outcome of one booking attempt.
type Result int

const (
	Booked Result = iota
	NoSlotsAvailable
	OnlyRestrictedSlotsAvailable
	VerificationFailed
)

func (r Result) String() string {
	switch r {
	case Booked:
		return "booked"
	case NoSlotsAvailable:
		return "no_slots_available"
	case OnlyRestrictedSlotsAvailable:
		return "only_restricted_slots_available"
	case VerificationFailed:
		return "verification_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the result by name in reports.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Candidate is one bookable slot from a search. Handle belongs to the result
// page it was read from and is dropped on the next search.
type Candidate struct {
	Label      string
	Restricted bool
	Handle     page.Element
}

// Outcome records how an attempt for one date and floor ended.
type Outcome struct {
	Option   string     `json:"option"`
	Date     civil.Date `json:"date"`
	Floor    int        `json:"floor"`
	Result   Result     `json:"result"`
	Slot     string     `json:"slot,omitempty"`
	Attempts int        `json:"attempts"`
	Session  int        `json:"session,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// IsRestricted reports whether label contains any keyword, ignoring case.
func IsRestricted(label string, keywords []string) bool {
	lower := strings.ToLower(label)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Unrestricted returns the candidates that may be booked, keeping their order.
func Unrestricted(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Restricted {
			out = append(out, c)
		}
	}
	return out
}
