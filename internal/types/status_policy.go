package types

import "fmt"

// StatusPolicy ranks statuses so that an application only moves forward.
// Statuses missing from the table rank 0.
type StatusPolicy struct {
	priorities map[Status]int
}

// DefaultStatusPolicy returns the standard ranking:
// applied < in_progress < follow_up_needed < interview_scheduled < offer_received < rejected
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{priorities: map[Status]int{
		StatusApplied:            1,
		StatusInProgress:         2,
		StatusFollowUpNeeded:     3,
		StatusInterviewScheduled: 4,
		StatusOfferReceived:      5,
		StatusRejected:           6,
	}}
}

// NewStatusPolicy builds a policy from the default ranking with the given overrides applied.
// Override keys are normalised with ParseStatus; unknown keys are an error.
func NewStatusPolicy(overrides map[string]int) (StatusPolicy, error) {
	p := DefaultStatusPolicy()
	for raw, rank := range overrides {
		s, ok := ParseStatus(raw)
		if !ok {
			return StatusPolicy{}, fmt.Errorf("unknown status %q in priority overrides", raw)
		}
		if rank < 0 {
			return StatusPolicy{}, fmt.Errorf("priority for %s must be non-negative, got %d", s, rank)
		}
		p.priorities[s] = rank
	}
	return p, nil
}

// Priority returns the rank of s
func (p StatusPolicy) Priority(s Status) int {
	if p.priorities == nil {
		return DefaultStatusPolicy().priorities[s]
	}
	return p.priorities[s]
}

// Advances reports whether moving from current to next is allowed (next ranks at least as high)
func (p StatusPolicy) Advances(current, next Status) bool {
	return p.Priority(next) >= p.Priority(current)
}
