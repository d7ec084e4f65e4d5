package petstate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for persisted
// timestamps. Fixed width keeps the text lexically sortable.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Zone-less layouts accepted when reading, most specific first. They are
// interpreted in NaiveLocation.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// record is the persisted shape of PetState.
type record struct {
	Name        string  `json:"name"`
	Species     string  `json:"species"`
	Happiness   float64 `json:"happiness"`
	Health      float64 `json:"health"`
	Hunger      float64 `json:"hunger"`
	Cleanliness float64 `json:"cleanliness"`

	Partner1Name       string  `json:"partner1_name"`
	Partner2Name       string  `json:"partner2_name"`
	Partner1LastAction *string `json:"partner1_last_action"`
	Partner2LastAction *string `json:"partner2_last_action"`
	Partner1Streak     int     `json:"partner1_streak"`
	Partner2Streak     int     `json:"partner2_streak"`

	CoupleActivitiesCompleted int `json:"couple_activities_completed"`

	CreatedDate string `json:"created_date"`
	LastUpdated string `json:"last_updated"`

	ActionHistory []historyRecord `json:"action_history"`
}

type historyRecord struct {
	Timestamp      string `json:"timestamp"`
	Partner        string `json:"partner,omitempty"`
	Action         string `json:"action"`
	CoupleActivity bool   `json:"couple_activity"`
}

// MarshalJSON encodes the state in its persisted record shape.
func (s PetState) MarshalJSON() ([]byte, error) {
	r := record{
		Name:                      s.Name,
		Species:                   s.Species,
		Happiness:                 s.Happiness,
		Health:                    s.Health,
		Hunger:                    s.Hunger,
		Cleanliness:               s.Cleanliness,
		Partner1Name:              s.Partner1.Name,
		Partner2Name:              s.Partner2.Name,
		Partner1LastAction:        formatOptional(s.Partner1.LastAction),
		Partner2LastAction:        formatOptional(s.Partner2.LastAction),
		Partner1Streak:            s.Partner1.Streak,
		Partner2Streak:            s.Partner2.Streak,
		CoupleActivitiesCompleted: s.CoupleActivitiesCompleted,
		CreatedDate:               FormatTimestamp(s.CreatedDate),
		LastUpdated:               FormatTimestamp(s.LastUpdated),
		ActionHistory:             make([]historyRecord, len(s.ActionHistory)),
	}
	for i, h := range s.ActionHistory {
		r.ActionHistory[i] = historyRecord{
			Timestamp:      FormatTimestamp(h.Timestamp),
			Partner:        string(h.Partner),
			Action:         h.Action,
			CoupleActivity: h.CoupleActivity,
		}
	}
	return json.Marshal(r)
}

// UnmarshalJSON decodes a persisted record. Unparseable timestamps decode
// as absent rather than failing.
func (s *PetState) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	created, _ := ParseTimestamp(r.CreatedDate)
	updated, _ := ParseTimestamp(r.LastUpdated)

	*s = PetState{
		Name:        r.Name,
		Species:     r.Species,
		Happiness:   r.Happiness,
		Health:      r.Health,
		Hunger:      r.Hunger,
		Cleanliness: r.Cleanliness,
		Partner1: PartnerState{
			Name:       r.Partner1Name,
			LastAction: parseOptional(r.Partner1LastAction),
			Streak:     max(r.Partner1Streak, 0),
		},
		Partner2: PartnerState{
			Name:       r.Partner2Name,
			LastAction: parseOptional(r.Partner2LastAction),
			Streak:     max(r.Partner2Streak, 0),
		},
		CoupleActivitiesCompleted: max(r.CoupleActivitiesCompleted, 0),
		CreatedDate:               created,
		LastUpdated:               updated,
		ActionHistory:             make([]ActionRecord, 0, len(r.ActionHistory)),
	}
	for _, h := range r.ActionHistory {
		ts, _ := ParseTimestamp(h.Timestamp)
		s.ActionHistory = append(s.ActionHistory, ActionRecord{
			Timestamp:      ts,
			Partner:        Partner(h.Partner),
			Action:         h.Action,
			CoupleActivity: h.CoupleActivity,
		})
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout. The zero time renders empty.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads any accepted layout. It reports false for empty or
// malformed input.
func ParseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), true
	}
	loc := NaiveLocation()
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var naiveLocation atomic.Pointer[time.Location]

// SetNaiveLocation sets the zone of timestamps stored without an offset, as
// older data files wrote them in the host's local time. nil restores
// time.Local.
func SetNaiveLocation(loc *time.Location) {
	naiveLocation.Store(loc)
}

// NaiveLocation returns the zone used for timestamps without an offset.
func NaiveLocation() *time.Location {
	if loc := naiveLocation.Load(); loc != nil {
		return loc
	}
	return time.Local
}

func formatOptional(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := FormatTimestamp(*t)
	return &v
}

func parseOptional(v *string) *time.Time {
	if v == nil {
		return nil
	}
	t, ok := ParseTimestamp(*v)
	if !ok {
		return nil
	}
	return &t
}
