// cmd/server/predict.go
package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/crop-disease-service/internal/logging"
	"github.com/SyedDaiam9101/crop-disease-service/internal/predict"
)

func newPredictCmd(configFile *string) *cobra.Command {
	var (
		cropName  string
		imagePath string
	)

	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Classify a single image without starting the server",
		Example: `  crop-disease-service predict --crop rice --image leaf.jpg`,
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

			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			loaded, err := loadModels(cfg, logger)
			if err != nil {
				return err
			}
			defer closeModels(loaded.Registry, zap.NewNop())

			svc := predict.NewService(loaded.Registry, predict.WithLogger(logger.Named("predict")))
			res, err := svc.Predict(cmd.Context(), predict.Request{
				Crop:        cropName,
				ContentType: contentType(imagePath, data),
				Image:       data,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&cropName, "crop", "", "Crop name, e.g. rice or banana")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the leaf image")
	_ = cmd.MarkFlagRequired("image")
	addModelFlags(cmd)

	return cmd
}

// contentType mirrors what a browser upload would send for the file.
func contentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
