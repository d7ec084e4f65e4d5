// Package petstate holds the shared pet aggregate and the deterministic rules
// that evolve it from elapsed time and care actions.
//
// Conventions:
//   - Every rule is a pure function of (state, input, now). Nothing here reads
//     the wall clock, touches storage or locks.
//   - Rules take a PetState by value and return the next one; the action
//     history of the input is never aliased by the output.
package petstate

import "time"

// Default identity values for a freshly created pet.
const (
	DefaultName         = "Fluffy"
	DefaultSpecies      = "Floof"
	DefaultPartner1Name = "Partner 1"
	DefaultPartner2Name = "Partner 2"
	DefaultVital        = 50.0
)

// Vital bounds.
const (
	MinVital = 0.0
	MaxVital = 100.0
)

// Partner identifies one of the two caretakers.
type Partner string

// The two recognised partners.
const (
	Partner1 Partner = "partner1"
	Partner2 Partner = "partner2"
)

// Valid reports whether p names one of the two partners.
func (p Partner) Valid() bool {
	return p == Partner1 || p == Partner2
}

// Individual care actions with a vitals effect. Any other string is accepted
// by the engine and only records history and streaks.
const (
	ActionFeed     = "feed"
	ActionClean    = "clean"
	ActionPlay     = "play"
	ActionTreat    = "treat"
	ActionCuddle   = "cuddle"
	ActionExercise = "exercise"
)

// Joint couple activities with a kind-specific bonus.
const (
	ActivityWalk  = "walk"
	ActivityGroom = "groom"
	ActivityTrain = "train"
)

// CoupleActionPrefix prefixes the history action of a joint couple activity.
const CoupleActionPrefix = "couple_"

// PartnerState is the per-partner part of the aggregate.
type PartnerState struct {
	Name string
	// LastAction is nil until the partner's first action.
	LastAction *time.Time
	Streak     int
}

// ActionRecord is one entry of the bounded action history.
type ActionRecord struct {
	Timestamp time.Time
	// Partner is empty for joint couple activities.
	Partner        Partner
	Action         string
	CoupleActivity bool
}

// PetState is the single aggregate mutated by the engine.
type PetState struct {
	Name    string
	Species string

	Happiness   float64
	Health      float64
	Hunger      float64
	Cleanliness float64

	Partner1 PartnerState
	Partner2 PartnerState

	CoupleActivitiesCompleted int

	CreatedDate time.Time
	// LastUpdated is zero when unknown; the next decay call initialises it.
	LastUpdated time.Time

	ActionHistory []ActionRecord
}

// Profile carries the optional identity fields of a profile update. Nil
// fields are left untouched.
type Profile struct {
	Name         *string
	Species      *string
	Partner1Name *string
	Partner2Name *string
}

// NewDefault returns the state of a brand new pet created at now.
func NewDefault(now time.Time) PetState {
	return PetState{
		Name:          DefaultName,
		Species:       DefaultSpecies,
		Happiness:     DefaultVital,
		Health:        DefaultVital,
		Hunger:        DefaultVital,
		Cleanliness:   DefaultVital,
		Partner1:      PartnerState{Name: DefaultPartner1Name},
		Partner2:      PartnerState{Name: DefaultPartner2Name},
		CreatedDate:   now,
		LastUpdated:   now,
		ActionHistory: []ActionRecord{},
	}
}

// Partner returns the state of partner p.
func (s PetState) Partner(p Partner) (PartnerState, error) {
	switch p {
	case Partner1:
		return s.Partner1, nil
	case Partner2:
		return s.Partner2, nil
	default:
		return PartnerState{}, invalidPartner(p)
	}
}

// partnerRef returns a pointer into s for partner p.
func (s *PetState) partnerRef(p Partner) (*PartnerState, error) {
	switch p {
	case Partner1:
		return &s.Partner1, nil
	case Partner2:
		return &s.Partner2, nil
	default:
		return nil, invalidPartner(p)
	}
}

// Clone returns a deep copy of s.
func (s PetState) Clone() PetState {
	out := s
	out.Partner1.LastAction = cloneTime(s.Partner1.LastAction)
	out.Partner2.LastAction = cloneTime(s.Partner2.LastAction)
	out.ActionHistory = make([]ActionRecord, len(s.ActionHistory))
	copy(out.ActionHistory, s.ActionHistory)
	return out
}

// LastAction returns the most recent history entry, if any.
func (s PetState) LastAction() (ActionRecord, bool) {
	if len(s.ActionHistory) == 0 {
		return ActionRecord{}, false
	}
	return s.ActionHistory[len(s.ActionHistory)-1], true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
