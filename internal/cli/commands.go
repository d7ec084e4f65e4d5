package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultURL = "http://localhost:8080"

type rootFlags struct {
	url     string
	timeout time.Duration
	json    bool
}

// NewRootCommand builds the petctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:   "petctl",
		Short: "petctl looks after the shared pet from the terminal.",
		Long: `petctl talks to a running couplepet service. It shows the pet, ` +
			`applies care actions for either partner and lists the action history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	envURL := os.Getenv("COUPLEPET_URL")
	if envURL == "" {
		envURL = defaultURL
	}
	root.PersistentFlags().StringVar(&f.url, "url", envURL, "base URL of the service (env COUPLEPET_URL)")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", defaultTimeout, "request timeout")
	root.PersistentFlags().BoolVar(&f.json, "json", false, "print raw JSON")

	root.AddCommand(
		showCmd(f),
		historyCmd(f),
		actCmd(f),
		coupleCmd(f),
		resetCmd(f),
		profileCmd(f),
		statsCmd(f),
	)
	return root
}

// Execute runs petctl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout).ExecuteContext(ctx)
}

func (f *rootFlags) client() *Client {
	return NewClient(f.url, WithTimeout(f.timeout))
}

func (f *rootFlags) printReply(cmd *cobra.Command, r Reply) error {
	if f.json {
		return renderJSON(cmd.OutOrStdout(), r.Pet)
	}
	return renderPet(cmd.OutOrStdout(), r.Pet, r.Replay)
}

func showCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the pet after time decay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pet, err := f.client().Pet(cmd.Context())
			if err != nil {
				return err
			}
			return f.printReply(cmd, Reply{Pet: pet})
		},
	}
}

func historyCmd(f *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := f.client().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if f.json {
				return renderJSON(cmd.OutOrStdout(), entries)
			}
			return renderHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many entries (0 for all)")
	return cmd
}

func actCmd(f *rootFlags) *cobra.Command {
	var (
		couple bool
		key    string
	)
	cmd := &cobra.Command{
		Use:     "act <partner1|partner2> <action>",
		Short:   "Apply a care action for one partner",
		Example: "  petctl act partner1 feed\n  petctl act partner2 cuddle --couple",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := f.client().Act(cmd.Context(), args[0], args[1], couple, key)
			if err != nil {
				return err
			}
			return f.printReply(cmd, r)
		},
	}
	cmd.Flags().BoolVar(&couple, "couple", false, "both partners took part")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "apply at most once for this key")
	return cmd
}

func coupleCmd(f *rootFlags) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "couple <walk|groom|train>",
		Short: "Apply a joint activity of both partners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := f.client().CoupleActivity(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			return f.printReply(cmd, r)
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "apply at most once for this key")
	return cmd
}

func resetCmd(f *rootFlags) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Start over with a new pet, keeping partner names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := f.client().Reset(cmd.Context(), key)
			if err != nil {
				return err
			}
			return f.printReply(cmd, r)
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "apply at most once for this key")
	return cmd
}

func profileCmd(f *rootFlags) *cobra.Command {
	var name, species, partner1, partner2 string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Rename the pet or the partners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("species") {
				p.Species = &species
			}
			if flags.Changed("partner1") {
				p.Partner1Name = &partner1
			}
			if flags.Changed("partner2") {
				p.Partner2Name = &partner2
			}
			pet, err := f.client().UpdateProfile(cmd.Context(), p)
			if err != nil {
				return err
			}
			return f.printReply(cmd, Reply{Pet: pet})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "pet name")
	cmd.Flags().StringVar(&species, "species", "", "pet species")
	cmd.Flags().StringVar(&partner1, "partner1", "", "display name of partner1")
	cmd.Flags().StringVar(&partner2, "partner2", "", "display name of partner2")
	return cmd
}

func statsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show service statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return renderJSON(cmd.OutOrStdout(), s)
		},
	}
}
