package petstate

import (
	"math"
	"time"
)

// Bonuses granted on top of the per-action table.
const (
	coupleFlagHappiness = 10.0
	coupleFlagHealth    = 5.0

	jointHappiness     = 30.0
	jointHealth        = 15.0
	walkHealthBonus    = 10.0
	groomCleanBonus    = 30.0
	trainHappyBonus    = 10.0
	hoursPerDay        = 24.0
	healthDecayDivisor = 2.0
)

// effect is the vitals delta of one individual action.
type effect struct {
	hunger      float64
	happiness   float64
	health      float64
	cleanliness float64
}

var actionEffects = map[string]effect{
	ActionFeed:     {hunger: 20, happiness: 5},
	ActionClean:    {cleanliness: 20, health: 5},
	ActionPlay:     {hunger: -5, happiness: 20},
	ActionTreat:    {hunger: 5, happiness: 10},
	ActionCuddle:   {happiness: 15},
	ActionExercise: {hunger: -10, health: 15},
}

// KnownAction reports whether action has an effect on the vitals.
func KnownAction(action string) bool {
	_, ok := actionEffects[action]
	return ok
}

// KnownActivity reports whether kind has a joint activity bonus.
func KnownActivity(kind string) bool {
	switch kind {
	case ActivityWalk, ActivityGroom, ActivityTrain:
		return true
	}
	return false
}

// Engine applies the pet rules. It holds no state besides its rule set and
// is safe for concurrent use.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine with the stock rules unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() Rules {
	return e.rules
}

// ApplyTimeDecay lowers hunger, cleanliness and happiness in proportion to
// the idle time since LastUpdated once it exceeds the decay threshold, and
// takes half of that from health if any of the three ends up neglected.
// A zero LastUpdated is initialised to now without decay.
func (e *Engine) ApplyTimeDecay(s PetState, now time.Time) PetState {
	out := s.Clone()
	if out.LastUpdated.IsZero() {
		out.LastUpdated = now
		return out
	}

	if elapsed := now.Sub(out.LastUpdated); elapsed > e.rules.DecayThreshold {
		decay := e.DecayFor(elapsed)
		out.Hunger = clamp(out.Hunger - decay)
		out.Cleanliness = clamp(out.Cleanliness - decay)
		out.Happiness = clamp(out.Happiness - decay)

		low := e.rules.LowStatThreshold
		if out.Hunger < low || out.Cleanliness < low || out.Happiness < low {
			out.Health = clamp(out.Health - decay/healthDecayDivisor)
		}
	}

	out.LastUpdated = advance(out.LastUpdated, now)
	return out
}

// DecayFor returns the points lost over an idle period, ignoring the
// threshold.
func (e *Engine) DecayFor(elapsed time.Duration) float64 {
	return math.Min(elapsed.Hours()/hoursPerDay*e.rules.DecayPerDay, e.rules.DecayCap)
}

// ApplyAction records a care action by partner. It does not decay; see Act.
func (e *Engine) ApplyAction(s PetState, partner Partner, action string, now time.Time, couple bool) (PetState, error) {
	out := s.Clone()
	ps, err := out.partnerRef(partner)
	if err != nil {
		return s, err
	}
	touchStreak(ps, now)

	if fx, ok := actionEffects[action]; ok {
		out.Hunger = clamp(out.Hunger + fx.hunger)
		out.Happiness = clamp(out.Happiness + fx.happiness)
		out.Health = clamp(out.Health + fx.health)
		out.Cleanliness = clamp(out.Cleanliness + fx.cleanliness)
	}

	if couple {
		out.CoupleActivitiesCompleted++
		out.Happiness = clamp(out.Happiness + coupleFlagHappiness)
		out.Health = clamp(out.Health + coupleFlagHealth)
	}

	out.ActionHistory = e.appendHistory(out.ActionHistory, ActionRecord{
		Timestamp:      now,
		Partner:        partner,
		Action:         action,
		CoupleActivity: couple,
	})

	low := e.rules.LowStatThreshold
	if out.Hunger < low || out.Cleanliness < low {
		out.Health = clamp(out.Health - e.rules.NeglectPenalty)
	}

	out.LastUpdated = advance(out.LastUpdated, now)
	return out, nil
}

// ApplyCoupleActivity records a joint activity of both partners. Streaks are
// untouched and, unlike ApplyAction, no neglect penalty is checked.
func (e *Engine) ApplyCoupleActivity(s PetState, kind string, now time.Time) PetState {
	out := s.Clone()

	out.Happiness = clamp(out.Happiness + jointHappiness)
	out.Health = clamp(out.Health + jointHealth)

	switch kind {
	case ActivityWalk:
		out.Health = clamp(out.Health + walkHealthBonus)
	case ActivityGroom:
		out.Cleanliness = clamp(out.Cleanliness + groomCleanBonus)
	case ActivityTrain:
		out.Happiness = clamp(out.Happiness + trainHappyBonus)
	}

	out.CoupleActivitiesCompleted++
	out.ActionHistory = e.appendHistory(out.ActionHistory, ActionRecord{
		Timestamp:      now,
		Action:         CoupleActionPrefix + kind,
		CoupleActivity: true,
	})

	out.LastUpdated = advance(out.LastUpdated, now)
	return out
}

// Act decays s up to now and then applies the action.
func (e *Engine) Act(s PetState, partner Partner, action string, now time.Time, couple bool) (PetState, error) {
	if !partner.Valid() {
		return s, invalidPartner(partner)
	}
	return e.ApplyAction(e.ApplyTimeDecay(s, now), partner, action, now, couple)
}

// CoupleActivity decays s up to now and then applies the joint activity.
func (e *Engine) CoupleActivity(s PetState, kind string, now time.Time) PetState {
	return e.ApplyCoupleActivity(e.ApplyTimeDecay(s, now), kind, now)
}

// Reset returns a default pet that keeps the partners' display names.
// LastUpdated does not move backwards even if now precedes it.
func (e *Engine) Reset(s PetState, now time.Time) PetState {
	out := NewDefault(now)
	out.LastUpdated = advance(s.LastUpdated, now)
	if s.Partner1.Name != "" {
		out.Partner1.Name = s.Partner1.Name
	}
	if s.Partner2.Name != "" {
		out.Partner2.Name = s.Partner2.Name
	}
	return out
}

// UpdateProfile applies the provided identity fields only.
func (e *Engine) UpdateProfile(s PetState, p Profile, now time.Time) PetState {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Species != nil {
		out.Species = *p.Species
	}
	if p.Partner1Name != nil {
		out.Partner1.Name = *p.Partner1Name
	}
	if p.Partner2Name != nil {
		out.Partner2.Name = *p.Partner2Name
	}
	out.LastUpdated = advance(out.LastUpdated, now)
	return out
}

// appendHistory appends r and drops the oldest entries beyond the limit.
func (e *Engine) appendHistory(h []ActionRecord, r ActionRecord) []ActionRecord {
	h = append(h, r)
	if over := len(h) - e.rules.HistoryLimit; over > 0 {
		h = append([]ActionRecord(nil), h[over:]...)
	}
	return h
}

// touchStreak extends the streak when the previous action is at most one
// whole day old and restarts it otherwise.
func touchStreak(ps *PartnerState, now time.Time) {
	if ps.LastAction == nil {
		ps.Streak = 1
	} else {
		days := math.Floor(now.Sub(*ps.LastAction).Hours() / hoursPerDay)
		if days <= 1 {
			ps.Streak++
		} else {
			ps.Streak = 1
		}
	}
	t := now
	ps.LastAction = &t
}

// advance never lets LastUpdated move backwards.
func advance(prev, now time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}

func clamp(v float64) float64 {
	return math.Max(MinVital, math.Min(MaxVital, v))
}
