package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdCmd = &cobra.Command{
	Use:   "cmd <line>",
	Short: "Send a chat command line, e.g. leakctl cmd /search query: huge",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newClient().command(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printReply(os.Stdout, r)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file for the pending /upload session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newClient().upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printReply(os.Stdout, r)
	},
}

func init() {
	rootCmd.AddCommand(cmdCmd)
	rootCmd.AddCommand(uploadCmd)
}

func printReply(w io.Writer, r *reply) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(r)
	}
	if r.Kind == "error" {
		fmt.Fprintln(w, color.New(color.FgRed).Sprint(r.Text))
		return nil
	}
	fmt.Fprintln(w, r.Text)
	return nil
}
