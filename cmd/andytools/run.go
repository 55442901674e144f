package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

var (
	runParamsJSON  string
	runUserID      string
	runTimeoutMs   int64
	runEnableCache bool
)

var runCmd = &cobra.Command{
	Use:   "run <toolId>",
	Short: "Execute one registered tool through the full pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHost(cfgFile)
		if err != nil {
			return err
		}
		defer h.close()
		if err := h.lifecycle.Initialize(); err != nil {
			return err
		}

		parameters := map[string]interface{}{}
		if runParamsJSON != "" {
			if err := json.Unmarshal([]byte(runParamsJSON), &parameters); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
		}

		execCtx := &andytools.ToolExecutionContext{
			UserID:         runUserID,
			Permissions:    defaultPermissions(h.cfg.DefaultPermissions),
			ResourceLimits: defaultResourceLimits(h.cfg.DefaultLimits),
		}
		if runEnableCache {
			execCtx.AdditionalData = map[string]interface{}{
				"EnableCaching":   true,
				"CacheTimeToLive": h.cfg.Cache.DefaultTimeToLive,
			}
		}

		result, err := h.executor.Execute(context.Background(), andytools.ToolExecutionRequest{
			ToolID:                args[0],
			Parameters:            parameters,
			Context:               execCtx,
			ValidateParameters:    true,
			EnforcePermissions:    true,
			EnforceResourceLimits: true,
			TimeoutMs:             runTimeoutMs,
		})
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runParamsJSON, "params", "{}", "JSON-encoded parameters object")
	runCmd.Flags().StringVar(&runUserID, "user", "cli", "caller user id")
	runCmd.Flags().Int64Var(&runTimeoutMs, "timeout-ms", 0, "execution timeout in milliseconds (0 uses the configured default execution time limit)")
	runCmd.Flags().BoolVar(&runEnableCache, "enable-cache", false, "memoize this call behind the execution cache")
}
