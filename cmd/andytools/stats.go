package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print executor, cache and registry statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHost(cfgFile)
		if err != nil {
			return err
		}
		defer h.close()
		if err := h.lifecycle.Initialize(); err != nil {
			return err
		}

		report := map[string]interface{}{
			"executor": h.executor.Statistics(),
			"registry": h.registry.Statistics(),
			"cache":    h.cache.GetStatistics(),
			"lifecycle": h.lifecycle.GetStatus(),
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}
