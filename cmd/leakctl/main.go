// Command leakctl talks to a running leakwatch API and tails its event bus.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	timeout   time.Duration
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:          "leakctl",
	Short:        "Control and watch a leakwatch server",
	Long:         "leakctl triggers scans, runs chat commands, uploads files and follows leak events of a leakwatch server.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("LEAKWATCH_SERVER", "http://localhost:8080"), "leakwatch API base URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", envOr("LEAKWATCH_USER", "cli"), "user id sent with commands and uploads")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() *apiClient {
	return newAPIClient(serverURL, userID, timeout)
}
