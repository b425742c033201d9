package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/sla"
)

func newSLACmd(opts *options) *cobra.Command {
	var (
		status string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "List demands with their SLA state.",
		Long: `Classify demands as on_time, warning or overdue at the evaluation instant.

Done demands are hidden unless --all is given; their state is frozen at
completion.

Examples:
  opsctl sla
  opsctl sla --status overdue
  opsctl sla --all --at 2025-03-20T12:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var want sla.Status
			if status != "" {
				st, err := sla.ParseStatus(status)
				if err != nil {
					return err
				}
				want = st
			}
			snap, now, err := opts.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			labeled := opts.classifier().Label(snap.Demands, now)
			counts := map[sla.Status]int{}
			rows := make([][]string, 0, len(labeled))
			for _, l := range labeled {
				if l.Demand.IsDone() && !all {
					continue
				}
				if want != "" && l.SLA != want {
					continue
				}
				counts[l.SLA]++
				rows = append(rows, slaRow(snap, l, opts.loc))
			}

			out := cmd.OutOrStdout()
			headers := []string{"ID", "Title", "Client", "Assignee", "Column", "Due", "SLA"}
			if err := renderTable(out, headers, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d  %s: %d  %s: %d\n",
				slaLabel(sla.Overdue), counts[sla.Overdue],
				slaLabel(sla.Warning), counts[sla.Warning],
				slaLabel(sla.OnTime), counts[sla.OnTime],
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show on_time, warning or overdue")
	cmd.Flags().BoolVar(&all, "all", false, "include done demands")
	return cmd
}

func slaRow(snap *agency.Snapshot, l sla.Labeled, loc *time.Location) []string {
	d := l.Demand
	client, assignee := "-", "-"
	if d.ClientID != nil {
		if c, ok := snap.Client(*d.ClientID); ok {
			client = c.Name
		}
	}
	if d.AssignedTo != nil {
		if m, ok := snap.Member(*d.AssignedTo); ok {
			assignee = m.Name
		}
	}
	return []string{
		string(d.ID),
		d.Title,
		client,
		assignee,
		string(d.Status),
		dueLabel(d, loc),
		slaLabel(l.SLA),
	}
}

// dueLabel shows the due date, or the hour budget when only that is set.
func dueLabel(d agency.Demand, loc *time.Location) string {
	switch {
	case d.DueDate != nil:
		return d.DueDate.In(loc).Format("2006-01-02 15:04")
	case d.SLAHours != nil:
		return fmt.Sprintf("%dh budget", *d.SLAHours)
	default:
		return "-"
	}
}
