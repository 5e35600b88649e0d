// cmd/server/root.go
package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/crop-disease-service/internal/config"
	"github.com/SyedDaiam9101/crop-disease-service/internal/inference"
	"github.com/SyedDaiam9101/crop-disease-service/internal/registry"
)

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Crop disease diagnosis from leaf images",
		Long: `Serves pretrained ONNX image classifiers for crop disease diagnosis.

A client uploads an image together with a crop name; the service picks the
rice, banana or general plant model, runs it and returns the top label.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to service config file (default: ./config.yaml if present)")

	cmd.AddCommand(
		newServeCmd(&configFile),
		newCheckCmd(&configFile),
		newPredictCmd(&configFile),
	)

	return cmd
}

// loadConfig reads and validates the service configuration.
func loadConfig(cmd *cobra.Command, configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadModels builds the model registry from the configured model config.
func loadModels(cfg *config.Config, logger *zap.Logger) (*registry.LoadResult, error) {
	logger.Info("Loading models", zap.String("config", cfg.ModelConfigPath))
	res, err := registry.Load(cfg.ModelConfigPath,
		registry.WithLoader(registry.ONNXLoader(cfg.ONNXLibrary)),
		registry.WithLogger(logger.Named("registry")),
	)
	if err != nil {
		// Sessions may have been created before the failure was known
		_ = inference.DestroyEnvironment()
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	logger.Info("Models ready",
		zap.Strings("loaded", res.Registry.Keys()),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// closeModels closes every model session and the ONNX environment.
func closeModels(reg *registry.Registry, logger *zap.Logger) {
	if err := reg.Close(); err != nil {
		logger.Warn("Failed to close models", zap.Error(err))
	}
}

// addModelFlags registers the flags shared by every command that loads models.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("model-config", "", "Path to model config JSON/YAML (default: models/model_config.json)")
	cmd.Flags().String("onnx-lib", "", "Path to the ONNX Runtime shared library")
}
