package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

var languagesOutputFlag string

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported languages",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printLanguages(cmd.OutOrStdout(), languagesOutputFlag)
	},
}

func init() {
	languagesCmd.Flags().StringVarP(&languagesOutputFlag, "output", "o", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(languagesCmd)
}

func printLanguages(w io.Writer, format string) error {
	langs := runner.Languages()

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(langs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(langs)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMES\tRUNTIME\tVERSION\tFILE")
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", strings.Join(l.Aliases, ", "), l.Runtime, l.Version, l.Filename)
	}
	return tw.Flush()
}
