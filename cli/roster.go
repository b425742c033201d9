package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/roster"
)

func newRosterCmd(opts *options) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Show per-member retention, churn and delivery metrics.",
		Long: `Compute the member performance view.

Retention and churn cover the member's whole allocation history; the
delivery counters (new clients, items created/completed) only count inside
the look-back window.

Examples:
  opsctl roster --window 90d
  opsctl roster --snapshot agency.json --window month`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := generic.ParsePeriodConfig(window)
			if err != nil {
				return &generic.FieldError{Field: "window", Err: err}
			}
			snap, now, err := opts.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			b := &roster.Builder{Classifier: opts.classifier(), Location: opts.loc}
			team, err := b.Build(snap, now, pc)
			if err != nil {
				return err
			}
			return renderRoster(cmd, team)
		},
	}
	cmd.Flags().StringVar(&window, "window", "90d", "look-back window: 30d, 90d, month, year or all")
	return cmd
}

func renderRoster(cmd *cobra.Command, team []roster.MemberMetrics) error {
	rows := make([][]string, 0, len(team))
	for _, m := range team {
		rows = append(rows, []string{
			m.Name,
			m.Role,
			string(m.Status),
			strconv.Itoa(m.ActiveClients),
			strconv.Itoa(m.LostClients),
			rateLabel(m.RetentionRate, m.HasHistory),
			strconv.Itoa(m.ChurnRate) + "%",
			strconv.Itoa(m.NewClients),
			strconv.Itoa(m.ItemsCreated),
			strconv.Itoa(m.ItemsCompleted),
			countLabel(m.ItemsOverdue),
			strconv.FormatFloat(m.AvgCycleHours, 'f', 1, 64),
			optionalFloat(m.AvgHealthScore),
		})
	}
	headers := []string{"Member", "Role", "Status", "Active", "Lost", "Retention", "Churn", "New", "Created", "Done", "Overdue", "Cycle h", "Health"}
	return renderTable(cmd.OutOrStdout(), headers, rows)
}
