package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shiftcal/internal/week"
)

type weekFlags struct {
	start  string
	days   int
	view   string
	asJSON bool
}

func newWeekCmd(g *globalFlags) *cobra.Command {
	f := &weekFlags{}

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Load the roster and print the laid-out week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeek(cmd.Context(), cmd.OutOrStdout(), g, f)
		},
	}
	cmd.Flags().StringVar(&f.start, "start", "", "first day as YYYY-MM-DD (default: current week)")
	cmd.Flags().IntVar(&f.days, "days", 0, "number of days (default from config)")
	cmd.Flags().StringVar(&f.view, "view", "", "full or prime (default from config)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the week as JSON")
	return cmd
}

func runWeek(ctx context.Context, out io.Writer, g *globalFlags, f *weekFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var start time.Time
	if f.start != "" {
		start, err = time.ParseInLocation(week.DateLayout, f.start, a.weeks.Location)
		if err != nil {
			return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
	}
	days := f.days
	if days <= 0 {
		days = cfg.Days
	}
	view := week.ParseView(cfg.View)
	if f.view != "" {
		view = week.ParseView(f.view)
	}

	wk, err := a.weeks.Refresh(ctx, start, days, view)
	if err != nil {
		return err
	}
	return printWeek(out, wk, f.asJSON)
}

func printWeek(out io.Writer, wk week.Week, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(wk)
	}

	fmt.Fprintln(out, StyleTitle.Render("Week of "+wk.Start))
	printKeyValue(out, "timezone", wk.Timezone)
	printKeyValue(out, "view", string(wk.View))
	printKeyValue(out, "riders", strconv.Itoa(len(wk.Riders())))

	rows := make([][]string, 0)
	for _, d := range wk.Days {
		for _, r := range d.Events {
			sh := r.Payload.Shift
			rider := sh.RiderName
			if rider == "" {
				rider = sh.RiderID
			}
			when := sh.StartAt.Format("15:04") + "-" + sh.EndAt.Format("15:04")
			if r.Payload.Continuation {
				when += " (cont.)"
			}
			rows = append(rows, []string{
				d.Date,
				rider,
				when,
				string(sh.Type),
				string(r.Layout.DisplayType),
				r.Layout.Left.String(),
				r.Layout.Width.String(),
			})
		}
	}
	if len(rows) == 0 {
		printInfo(out, "no shifts")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"Date", "Rider", "Shift", "Type", "Mode", "Left", "Width"}, rows, 4))
	return nil
}
