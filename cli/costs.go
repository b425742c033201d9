package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/generic"
)

type costsFlags struct {
	month   int
	year    int
	from    string
	to      string
	by      string
	items   bool
	history bool
}

func newCostsCmd(opts *options) *cobra.Command {
	f := &costsFlags{}
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show the prorated team cost of a period.",
		Long: `Prorate every allocation over the period and group the result.

Examples:
  # Current month by client
  opsctl costs

  # March 2025 by squad, from a snapshot file
  opsctl costs --snapshot agency.json --month 3 --year 2025 --by squad

  # An arbitrary date range with every line item
  opsctl costs --from 2025-03-10 --to 2025-04-09 --items

  # Charge the full monthly value for any overlap
  opsctl costs --method none`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, now, err := opts.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			period, err := f.period(now, opts.loc)
			if err != nil {
				return err
			}
			agg := finance.Options{IncludeInactive: f.history, Method: opts.cfg.Prorate()}
			report, err := finance.Aggregate(snap, period, agg)
			if err != nil {
				return err
			}
			return f.render(cmd, report)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.month, "month", 0, "calendar month 1-12 (default current)")
	fl.IntVar(&f.year, "year", 0, "calendar year (default current)")
	fl.StringVar(&f.from, "from", "", "range start YYYY-MM-DD (with --to)")
	fl.StringVar(&f.to, "to", "", "range end YYYY-MM-DD, inclusive (with --from)")
	fl.StringVar(&f.by, "by", "client", "grouping: client, member, squad or role")
	fl.BoolVar(&f.items, "items", false, "list every line item")
	fl.BoolVar(&f.history, "history", false, "also list allocations inactive in the period")
	fl.String("method", "", "prorate method: linear or none (overrides engine.prorate_method)")
	_ = opts.v.BindPFlag("engine.prorate_method", fl.Lookup("method"))
	return cmd
}

// period resolves --from/--to or --month/--year against now in loc.
func (f *costsFlags) period(now time.Time, loc *time.Location) (generic.Period, error) {
	if f.from != "" || f.to != "" {
		if f.from == "" || f.to == "" {
			return generic.Period{}, &generic.FieldError{Field: "from/to", Err: fmt.Errorf("%w: both bounds are required", generic.ErrInvalidPeriod)}
		}
		start, err := generic.ParseDate(f.from)
		if err != nil {
			return generic.Period{}, &generic.FieldError{Field: "from", Err: err}
		}
		end, err := generic.ParseDate(f.to)
		if err != nil {
			return generic.Period{}, &generic.FieldError{Field: "to", Err: err}
		}
		return generic.DateRange(start, end)
	}

	local := now.In(loc)
	year, month := local.Year(), local.Month()
	if f.year != 0 {
		year = f.year
	}
	if f.month != 0 {
		if f.month < 1 || f.month > 12 {
			return generic.Period{}, &generic.FieldError{Field: "month", Err: fmt.Errorf("%w: %d", generic.ErrInvalidPeriod, f.month)}
		}
		month = time.Month(f.month)
	}
	return generic.MonthPeriod(year, month), nil
}

func (f *costsFlags) groups(report *finance.CostReport) ([]finance.Group, error) {
	switch f.by {
	case "client":
		return report.ByClient, nil
	case "member":
		return report.ByMember, nil
	case "squad":
		return report.BySquad, nil
	case "role":
		return report.ByRole, nil
	default:
		return nil, &generic.FieldError{Field: "by", Err: fmt.Errorf("unknown grouping %q", f.by)}
	}
}

func (f *costsFlags) render(cmd *cobra.Command, report *finance.CostReport) error {
	out := cmd.OutOrStdout()
	groups, err := f.groups(report)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Period %s (%d days)\n", report.Period, report.Period.DayCount())

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			g.Name,
			strconv.Itoa(len(g.Items)),
			generic.FormatMoney(g.RoundedMonthly()),
			generic.FormatMoney(g.RoundedProportional()),
		})
	}
	if err := renderTable(out, []string{f.by, "Allocations", "Monthly", "Prorated"}, rows); err != nil {
		return err
	}

	if f.items {
		var items []finance.LineItem
		for _, g := range report.ByClient {
			items = append(items, g.Items...)
		}
		if err := renderItems(cmd, items); err != nil {
			return err
		}
	}
	if f.history && len(report.Inactive) > 0 {
		fmt.Fprintln(out, mutedColor.Sprint("Inactive in period"))
		if err := renderItems(cmd, report.Inactive); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Total: %s\n", generic.FormatMoney(report.RoundedTotal()))
	return nil
}

func renderItems(cmd *cobra.Command, items []finance.LineItem) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			string(it.AllocationID),
			it.ClientName,
			it.MemberName,
			fmt.Sprintf("%d/%d", it.ActiveDays, it.PeriodDays),
			generic.FormatMoney(it.MonthlyValue),
			generic.FormatMoney(it.Prorated),
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"Allocation", "Client", "Member", "Days", "Monthly", "Prorated"}, rows)
}
