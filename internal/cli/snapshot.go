package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"shiftcal/internal/capture"
)

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	var (
		target string
		output string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the week page of a running server as PNG",
		Long: `Capture the week page as PNG with headless Chromium.

The page must be served by a running "shiftcal serve"; by default the
local /week page in the configured view is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), cmd.OutOrStdout(), g, target, output)
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "page to capture (default: local /week)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG output path (default from config)")
	return cmd
}

func runSnapshot(ctx context.Context, out io.Writer, g *globalFlags, target, output string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}

	opts := a.captureOptions(target)
	if output != "" {
		opts.OutputPath = output
	}

	printInfo(out, "capturing %s", opts.URL)
	if err := capture.CaptureWeekPNG(ctx, opts); err != nil {
		printError(out, "snapshot failed")
		return err
	}
	printSuccess(out, "snapshot written")
	printFile(out, opts.OutputPath)
	return nil
}
