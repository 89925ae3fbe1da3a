package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leakwatch/internal/infra/bus"
	"github.com/bryanwahyu/leakwatch/internal/infra/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow scan and leak events from NATS (Ctrl+C to stop)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		prefix, _ := cmd.Flags().GetString("prefix")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := bus.New(natsURL, "", nil, nats.Name("leakctl"))
		if err != nil {
			return fmt.Errorf("connect %s: %w", natsURL, err)
		}
		defer b.Close()

		sub, err := b.Subscribe(ctx, prefix+".>", "", func(_ context.Context, subject string, data []byte) error {
			line, err := formatEvent(prefix, subject, data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skip %s: %v\n", subject, err)
				return nil
			}
			fmt.Println(line)
			return nil
		})
		if err != nil {
			return err
		}
		defer sub.Close()

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Println(gray(fmt.Sprintf("watching %s.> on %s", prefix, natsURL)))
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().String("nats", envOr("LEAKWATCH_NATS_URL", nats.DefaultURL), "NATS server URL")
	watchCmd.Flags().String("prefix", "leakwatch", "subject prefix")
	rootCmd.AddCommand(watchCmd)
}

// formatEvent renders one bus message as a single line.
func formatEvent(prefix, subject string, data []byte) (string, error) {
	rel := strings.TrimPrefix(subject, strings.Trim(prefix, ".")+".")
	cyan := color.New(color.FgCyan).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	switch {
	case rel == notify.SubjectScanCompleted:
		var ev notify.ScanCompleted
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s observed=%d new=%d developer=%d skipped=%d",
			cyan("scan"), ev.ScanID, ev.TotalObserved, ev.NewLeaks, ev.DeveloperLeaks, len(ev.Skipped)), nil

	case rel == notify.SubjectLeakNew:
		var ev notify.LeakEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", err
		}
		tag := green("leak")
		if ev.Asset.IsDeveloperOrigin {
			tag = red("DEV LEAK")
		}
		return fmt.Sprintf("%s %s %s [%s] from %s", tag, ev.Asset.ID, ev.Asset.Name, ev.Asset.Kind, ev.Asset.SourceTargetID), nil

	case strings.HasPrefix(rel, notify.SubjectAnnounce+"."):
		var ev notify.LeakEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s by %s: %s %s", cyan("announce"), ev.Channel, ev.AnnouncedBy, ev.Asset.ID, ev.Asset.Name), nil

	default:
		return "", fmt.Errorf("unknown subject")
	}
}
