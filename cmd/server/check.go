// cmd/server/check.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/crop-disease-service/internal/logging"
)

func newCheckCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the model config and report which models load",
		Long: `Loads every entry of the model config the same way serve does and
prints which models are available and which were skipped, then exits.

Exits non-zero when the config is missing or no model could be loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(serviceName)
			if err != nil {
				return err
			}
			defer logger.Sync()

			loaded, err := loadModels(cfg, logger)
			if err != nil {
				return err
			}
			defer closeModels(loaded.Registry, zap.NewNop())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model config: %s\n", cfg.ModelConfigPath)
			for _, key := range loaded.Registry.Keys() {
				entry, _ := loaded.Registry.Get(key)
				fmt.Fprintf(out, "  loaded   %-8s %s, %d classes\n", key, entry.TargetSize, len(entry.Labels))
			}
			for _, s := range loaded.Skipped {
				fmt.Fprintf(out, "  skipped  %s\n", s)
			}
			return nil
		},
	}

	addModelFlags(cmd)
	return cmd
}
