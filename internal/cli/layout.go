package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shiftcal/internal/layout"
)

type layoutFlags struct {
	opts     layout.Options
	midnight string
	timezone string
	asJSON   bool
}

// newLayoutCmd lays out one day of events read from a JSON file.
func newLayoutCmd() *cobra.Command {
	f := &layoutFlags{opts: layout.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "layout [events.json|-]",
		Short: "Compute the layout of one day of events",
		Long: `Compute the layout of one day of events.

The input is a JSON array of {"id","startAt","endAt","payload"} objects, or
an object with an "events" array (the POST /api/layout body). Use "-" or no
argument to read from stdin. The result is printed as a table, or as JSON
with --json.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return runLayout(cmd.InOrStdin(), cmd.OutOrStdout(), input, f)
		},
	}

	cmd.Flags().Float64Var(&f.opts.ContainerWidthPx, "width", f.opts.ContainerWidthPx, "container width in pixels")
	cmd.Flags().Float64Var(&f.opts.MinCardWidthPx, "min-card", f.opts.MinCardWidthPx, "minimum card width before switching to deck mode")
	cmd.Flags().Float64Var(&f.opts.DeckOffsetPx, "deck-offset", f.opts.DeckOffsetPx, "horizontal offset between deck cards in pixels")
	cmd.Flags().IntVar(&f.opts.MinHeightMinutes, "min-height", f.opts.MinHeightMinutes, "minimum card height in minutes")
	cmd.Flags().BoolVar(&f.opts.Expand, "expand", false, "let cards grow over free columns to their right")
	cmd.Flags().StringVar(&f.midnight, "midnight", string(layout.MidnightEndOfDay), "00:00 end policy: end_of_day, by_date")
	cmd.Flags().StringVar(&f.timezone, "tz", "", "IANA timezone to read times in (default: each timestamp's own)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print results as JSON")

	return cmd
}

func runLayout(stdin io.Reader, out io.Writer, input string, f *layoutFlags) error {
	var (
		data []byte
		err  error
	)
	if input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return fmt.Errorf("read events %s: %w", input, err)
	}

	events, err := decodeEvents(data)
	if err != nil {
		return fmt.Errorf("decode events %s: %w", input, err)
	}

	opts := f.opts
	opts.Midnight = layout.MidnightPolicy(f.midnight)
	if f.timezone != "" {
		loc, err := time.LoadLocation(f.timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", f.timezone, err)
		}
		opts.Location = loc
	}

	results := layout.Compute(events, opts)

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Results []layout.Result[json.RawMessage] `json:"results"`
		}{results})
	}

	if len(results) == 0 {
		printInfo(out, "no events")
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		st := r.Layout
		rows = append(rows, []string{
			r.ID,
			minuteLabel(st.Top),
			strconv.Itoa(st.Height),
			strconv.Itoa(st.Cluster),
			fmt.Sprintf("%d/%d", st.Column+1, st.Columns),
			string(st.DisplayType),
			st.Left.String(),
			st.Width.String(),
			strconv.Itoa(st.ZIndex),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Top", "Height", "Cluster", "Column", "Mode", "Left", "Width", "Z"},
		rows, 5,
	))
	printSuccess(out, "%d events laid out", len(results))
	return nil
}

// decodeEvents accepts a bare array or an {"events": [...]} object.
func decodeEvents(data []byte) ([]layout.Event[json.RawMessage], error) {
	data = bytes.TrimSpace(data)
	var events []layout.Event[json.RawMessage]
	if len(data) > 0 && data[0] == '[' {
		err := json.Unmarshal(data, &events)
		return events, err
	}
	var wrapped struct {
		Events []layout.Event[json.RawMessage] `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Events, nil
}

func minuteLabel(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
