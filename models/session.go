package models

import "time"

// Step is the named position of a conversation in the state machine.
type Step string

const (
	StepNone                 Step = "none"
	StepAwaitingCity         Step = "awaiting_city"
	StepAwaitingEmail        Step = "awaiting_email"
	StepAwaitingPriceMin     Step = "awaiting_price_min"
	StepAwaitingPriceMax     Step = "awaiting_price_max"
	StepAwaitingSurfaceMin   Step = "awaiting_surface_min"
	StepAwaitingSurfaceMax   Step = "awaiting_surface_max"
	StepAwaitingPropertyType Step = "awaiting_property_type"
)

var knownSteps = map[Step]struct{}{
	StepNone:                 {},
	StepAwaitingCity:         {},
	StepAwaitingEmail:        {},
	StepAwaitingPriceMin:     {},
	StepAwaitingPriceMax:     {},
	StepAwaitingSurfaceMin:   {},
	StepAwaitingSurfaceMax:   {},
	StepAwaitingPropertyType: {},
}

// Valid reports whether s is one of the enumerated steps.
func (s Step) Valid() bool {
	_, ok := knownSteps[s]
	return ok
}

// ConversationSession is the persisted state of one conversation identity.
// A session with StepNone is never stored; that state is the absence of a row.
type ConversationSession struct {
	ChatID    int64
	Step      Step
	Payload   map[string]any
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at now.
func (s ConversationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
