// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/insight/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to YAML configuration file",
		EnvVars: []string{"INSIGHT_CONFIG"},
	}
	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB directory (overrides storage.path)",
	}

	return &cli.App{
		Name:  "insight",
		Usage: "Customer profile indexing and retrieval-augmented analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Embed a customer CSV file and store it in the index",
				ArgsUsage: "<file.csv>",
				Action:    indexCommand,
				Flags: []cli.Flag{
					configFlag,
					dbFlag,
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Number of records per embedding request",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches embedded concurrently",
					},
					&cli.StringFlag{
						Name:  "policy",
						Usage: "Batch failure policy (fail-fast, skip)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Analyze a question against the indexed profiles",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					configFlag,
					dbFlag,
					&cli.StringFlag{
						Name:  "data",
						Usage: "CSV file to index before querying",
					},
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of similar profiles used as context",
					},
					&cli.BoolFlag{
						Name:  "examples",
						Usage: "Run the built-in example questions",
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "Print the retrieved profiles before the analysis",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the query API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					configFlag,
					dbFlag,
					&cli.StringFlag{
						Name:  "data",
						Usage: "CSV file to index before serving",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP port (overrides http.port)",
					},
				},
			},
			{
				Name:   "generate",
				Usage:  "Write a synthetic customer CSV file",
				Action: generateCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of records",
						Value:   1000,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Random seed",
						Value: 42,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := config.LoadEnvFiles(c.String("env-file")); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads --config and applies command-line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("chunk-size") {
		cfg.Batch.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("workers") {
		cfg.Batch.Workers = c.Int("workers")
	}
	if c.IsSet("policy") {
		cfg.Batch.Policy = c.String("policy")
	}
	if c.IsSet("k") {
		cfg.Query.K = c.Int("k")
	}
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
