package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/internal/domain/types"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderPet(w io.Writer, p petstate.PetState, replay bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s the %s\n", p.Name, p.Species)
	fmt.Fprintf(tw, "  happiness\t%5.1f\n", p.Happiness)
	fmt.Fprintf(tw, "  health\t%5.1f\n", p.Health)
	fmt.Fprintf(tw, "  hunger\t%5.1f\n", p.Hunger)
	fmt.Fprintf(tw, "  cleanliness\t%5.1f\n", p.Cleanliness)
	for _, ps := range []petstate.PartnerState{p.Partner1, p.Partner2} {
		last := "never"
		if ps.LastAction != nil {
			last = petstate.FormatTimestamp(*ps.LastAction)
		}
		fmt.Fprintf(tw, "%s\tstreak %d\tlast %s\n", ps.Name, ps.Streak, last)
	}
	fmt.Fprintf(tw, "couple activities\t%d\n", p.CoupleActivitiesCompleted)
	if replay {
		fmt.Fprintln(tw, "(replayed: this key was already applied)")
	}
	return tw.Flush()
}

func renderHistory(w io.Writer, entries []types.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no actions yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tBY\tACTION")
	for _, e := range entries {
		by := e.PartnerName
		if e.CoupleActivity && e.Partner == "" {
			by = "both"
		}
		action := e.Action
		if e.CoupleActivity && e.Partner != "" {
			action += " (together)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp, by, action)
	}
	return tw.Flush()
}
