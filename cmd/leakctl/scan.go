package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a discovery scan and wait for its result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		res, err := newClient().triggerScan(ctx)
		if err != nil {
			return err
		}
		return printScan(os.Stdout, res)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent scan result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := newClient().latestScan(cmd.Context())
		if err != nil {
			return err
		}
		return printScan(os.Stdout, res)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(latestCmd)
}

func printScan(w io.Writer, r *assets.ScanResult) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan(fmt.Sprintf("=== Scan %s ===", r.ID)))
	fmt.Fprintf(w, "  At:       %s\n", r.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Observed: %d assets in %dms\n", r.TotalAssetsObserved, r.ScanDurationMS)

	if len(r.NewLeaks) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No new assets"))
	} else {
		fmt.Fprintf(w, "  New:      %s (%d developer)\n", green(len(r.NewLeaks)), r.DeveloperLeaks())
		for _, a := range r.NewLeaks {
			marker := "○"
			if a.IsDeveloperOrigin {
				marker = red("●")
			}
			fmt.Fprintf(w, "    %s %s %s [%s] from %s\n", marker, a.ID, a.Name, a.Kind, a.SourceTargetID)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  %s %s: %s\n", yellow("skipped"), s.TargetID, s.Reason)
	}
	return nil
}
