package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/painradar/painradar/internal/sources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured connectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		lex, err := loadLexicon()
		if err != nil {
			return err
		}
		for _, src := range sources.FromConfig(cfg, lex) {
			status := "enabled"
			if !src.IsEnabled() {
				status = "disabled"
			}
			fmt.Printf("  %-14s %-14s %s\n", src.GetName(), src.Kind(), status)
		}
		return nil
	},
}
