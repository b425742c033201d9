package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/warp/agency-engine/sla"
)

var (
	overdueColor = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	onTimeColor  = color.New(color.FgGreen)
	mutedColor   = color.New(color.FgHiBlack)
)

// renderTable writes a right-aligned table.
func renderTable(out io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(out)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// slaLabel colours an SLA state the way the board does.
func slaLabel(s sla.Status) string {
	switch s {
	case sla.Overdue:
		return overdueColor.Sprint(string(s))
	case sla.Warning:
		return warningColor.Sprint(string(s))
	default:
		return onTimeColor.Sprint(string(s))
	}
}

// rateLabel colours a retention percentage.
func rateLabel(rate int, hasHistory bool) string {
	text := strconv.Itoa(rate) + "%"
	switch {
	case !hasHistory:
		return mutedColor.Sprint(text)
	case rate < 50:
		return overdueColor.Sprint(text)
	case rate < 80:
		return warningColor.Sprint(text)
	default:
		return onTimeColor.Sprint(text)
	}
}

func countLabel(n int) string {
	if n > 0 {
		return overdueColor.Sprint(n)
	}
	return strconv.Itoa(n)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
