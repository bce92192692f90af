package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/painradar/painradar/internal/pipeline"
)

var (
	scanJSON   bool
	scanCached bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <query>",
	Short: "Run the pipeline for a query and print the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetOutput(os.Stderr)
		query := strings.Join(args, " ")

		var runner pipeline.Runner
		if scanCached {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			runner = runnerFunc(a.service.GetReport)
		} else {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			runner = p
		}

		report, err := runner.Run(cmd.Context(), query)
		if errors.Is(err, pipeline.ErrNoResults) {
			fmt.Printf("No results for %q\n", query)
			return nil
		}
		if err != nil {
			return err
		}

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(report)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the full report as JSON")
	scanCmd.Flags().BoolVar(&scanCached, "cached", false, "Serve from and write to the configured report store")
}
