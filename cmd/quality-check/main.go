// Command quality-check classifies book files the way the ingestion gate
// does and prints one JSON report per file.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/book-ingest/internal/quality"
	"github.com/cuongbtq/book-ingest/shared/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "quality-check",
		Usage:     "Classify book files before ingestion",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "thresholds",
				Aliases: []string{"t"},
				Usage:   "YAML file overriding classifier thresholds",
			},
			&cli.StringFlag{
				Name:  "ext",
				Usage: "Treat every file as this extension",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit non-zero when any file is rejected",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Action: classifyCommand,
	}
}

func classifyCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one file is required", 2)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:  c.String("log-level"),
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	th, err := loadThresholds(c.String("thresholds"))
	if err != nil {
		return err
	}

	classifier := quality.NewClassifier(th, appLogger.Logger)
	enc := json.NewEncoder(c.App.Writer)

	rejected := 0
	for _, path := range c.Args().Slice() {
		rep := classifier.Classify(path, c.String("ext"))
		if !rep.Accepted() {
			rejected++
			appLogger.Debug("File rejected",
				slog.String("path", path),
				slog.String("verdict", string(rep.Verdict)),
			)
		}
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if c.Bool("strict") && rejected > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files rejected", rejected, c.NArg()), 1)
	}
	return nil
}

// loadThresholds reads overrides from path. Fields it leaves out keep their
// defaults.
func loadThresholds(path string) (quality.Thresholds, error) {
	if path == "" {
		return quality.DefaultThresholds(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return quality.Thresholds{}, fmt.Errorf("failed to read thresholds: %w", err)
	}

	var th quality.Thresholds
	if err := yaml.Unmarshal(data, &th); err != nil {
		return quality.Thresholds{}, fmt.Errorf("failed to parse thresholds: %w", err)
	}
	return th.WithDefaults(), nil
}
