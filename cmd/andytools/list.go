package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHost(cfgFile)
		if err != nil {
			return err
		}
		defer h.close()
		if err := h.lifecycle.Initialize(); err != nil {
			return err
		}

		results := h.registry.Search("", false)
		for _, reg := range results {
			status := "enabled"
			if !reg.Enabled {
				status = "disabled"
			}
			fmt.Printf("%-20s %-12s %-8s %s\n", reg.Metadata.ID, reg.Metadata.Category, status, reg.Metadata.Description)
		}
		return nil
	},
}
