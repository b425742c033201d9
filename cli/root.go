/*
Package cli implements opsctl, the reporting command line.

PURPOSE:
  Renders the derived views (cost report, team roster, SLA board) as tables
  without running the HTTP server. The data comes either from a JSON
  snapshot document or from the SQLite database the server writes.

COMMANDS:
  opsctl costs   Cost report of a period, grouped by client/member/squad/role
  opsctl roster  Member performance over a look-back window
  opsctl sla     Open demands with their SLA state

SOURCES (first match wins):
  --snapshot file.json   Parsed and validated by factory.SnapshotFactory
  --db agency.db         Loaded with sqlite.Store.LoadSnapshot
  database.path          From config (agency.yaml, AGENCY_DATABASE_PATH)

SEE ALSO:
  - cmd/opsctl/main.go: Entry point
  - config/config.go: Shared configuration loader
*/
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/config"
	"github.com/warp/agency-engine/factory"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/sla"
	"github.com/warp/agency-engine/store/sqlite"
)

// options holds the raw persistent flags shared by every subcommand.
type options struct {
	configPath   string
	snapshotPath string
	at           string
	noColor      bool

	v     *viper.Viper
	cfg   *config.Config
	loc   *time.Location
	clock generic.Clock
}

// NewRootCmd builds the opsctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{v: viper.New(), clock: generic.SystemClock{}}

	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Agency cost, roster and SLA reports.",
		Long:          `opsctl computes the agency's derived views from a snapshot file or the engine database and prints them as tables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.setup()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ./agency.yaml)")
	pf.StringVar(&opts.snapshotPath, "snapshot", "", "JSON snapshot file to report on instead of the database")
	pf.String("db", "", "SQLite database path (overrides database.path)")
	pf.String("tz", "", "engine time zone (overrides engine.time_zone)")
	pf.StringVar(&opts.at, "at", "", "evaluate as of this RFC3339 instant instead of now")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	_ = opts.v.BindPFlag("database.path", pf.Lookup("db"))
	_ = opts.v.BindPFlag("engine.time_zone", pf.Lookup("tz"))

	root.AddCommand(newCostsCmd(opts), newRosterCmd(opts), newSLACmd(opts))
	return root
}

// Execute runs opsctl against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

// setup resolves configuration once all flags are parsed.
func (o *options) setup() error {
	if o.noColor {
		color.NoColor = true
	}

	// Bound flags win over file and env only when set on the command line.
	cfg, err := config.LoadWith(o.v, o.configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	o.cfg, o.loc = cfg, loc

	if o.at != "" {
		at, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		o.clock = generic.FixedClock{At: at}
	}
	return nil
}

func (o *options) classifier() *sla.Classifier {
	return sla.NewClassifier(o.cfg.SLARules())
}

// loadSnapshot reads the clock once and loads the data as of that instant.
func (o *options) loadSnapshot(ctx context.Context) (*agency.Snapshot, time.Time, error) {
	now := o.clock.Now()

	if o.snapshotPath != "" {
		raw, err := os.ReadFile(o.snapshotPath)
		if err != nil {
			return nil, now, fmt.Errorf("read snapshot: %w", err)
		}
		f, err := factory.NewSnapshotFactory()
		if err != nil {
			return nil, now, err
		}
		snap, err := f.ParseSnapshot(raw, now)
		if err != nil {
			return nil, now, fmt.Errorf("%s: %w", o.snapshotPath, err)
		}
		return snap, now, nil
	}

	store, err := sqlite.New(o.cfg.Database.Path)
	if err != nil {
		return nil, now, fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	snap, err := store.LoadSnapshot(ctx, now)
	if err != nil {
		return nil, now, err
	}
	return snap, now, nil
}
