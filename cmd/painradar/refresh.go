package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [query...]",
	Short: "Regenerate stale reports for the given, tracked or stored queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		queries := args
		if len(queries) == 0 {
			queries = cfg.TrackedQueries
		}
		if len(queries) == 0 {
			if queries, err = a.service.StoredQueries(cmd.Context()); err != nil {
				return fmt.Errorf("listing stored reports: %w", err)
			}
		}
		if len(queries) == 0 {
			logrus.Info("No tracked or stored queries to refresh")
			return nil
		}

		if err := a.service.RefreshTracked(cmd.Context(), queries); err != nil {
			return err
		}
		logrus.Infof("Refreshed %d queries", len(queries))
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <query>",
	Short: "Delete the stored report for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.service.Forget(cmd.Context(), args[0])
	},
}
