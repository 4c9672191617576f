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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/poiesic/catalogsync"
	"github.com/poiesic/catalogsync/config"
)

var errNotConfirmed = errors.New("operation not confirmed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "catalogsync",
		Usage: "Migrate, embed and reconcile the sneaker product catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file; environment variables override it",
				EnvVars: []string{"CATALOGSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Answer yes to every confirmation prompt",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "migrate-products",
				Usage:  "Copy products from the source store, generating embeddings",
				Action: migrateProductsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "phase",
						Usage: "Run a single phase (priority, styled, remainder)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Records per embedding call and insert transaction",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding calls",
					},
					&cli.BoolFlag{
						Name:  "no-embeddings",
						Usage: "Insert records without vectors for a later batch-embed",
					},
				},
			},
			{
				Name:   "migrate-inventory",
				Usage:  "Copy inventory units and link them to products",
				Action: migrateInventoryCommand,
			},
			{
				Name:   "link-inventory",
				Usage:  "Link inventory units that have no product yet",
				Action: linkInventoryCommand,
			},
			{
				Name:   "batch-embed",
				Usage:  "Run one pass of the asynchronous batch embedding job",
				Action: batchEmbedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "shard-size",
						Usage: "Requests per provider job",
					},
					&cli.DurationFlag{
						Name:  "cooldown",
						Usage: "Pause before the last submission of a pass",
					},
					&cli.IntFlag{
						Name:  "submit-limit",
						Usage: "Maximum jobs submitted in this pass (0 for no limit)",
					},
					&cli.BoolFlag{
						Name:  "regenerate",
						Usage: "Plan every product, replacing existing vectors",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings whose text format version is stale",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "match",
				Usage:  "Map secondary products onto primary products",
				Action: matchCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity for an embedding match",
					},
					&cli.IntFlag{
						Name:  "commit-every",
						Usage: "Mappings per write transaction",
					},
					&cli.BoolFlag{
						Name:  "rematch",
						Usage: "Delete every mapping and match from scratch",
					},
				},
			},
			{
				Name:   "build-indexes",
				Usage:  "Build the vector index and the standard lookup indexes",
				Action: buildIndexesCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Drop and rebuild the vector index",
					},
					&cli.BoolFlag{
						Name:  "vector-only",
						Usage: "Skip the standard indexes",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find products similar to a text query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "platform",
						Usage: "Restrict to one platform (stockx, alias)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity",
						Value: 0.7,
					},
				},
			},
			{
				Name:   "probe-threshold",
				Usage:  "Sample secondary products and report match quality per threshold",
				Action: probeThresholdCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "sample",
						Usage: "Secondary products to sample",
						Value: 200,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Sampling seed",
						Value: 1,
					},
					&cli.Float64SliceFlag{
						Name:  "threshold",
						Usage: "Threshold to evaluate (repeatable)",
					},
					&cli.IntFlag{
						Name:  "show",
						Usage: "Print the N best matches",
						Value: 10,
					},
				},
			},
		},
	}
}

// openCatalog loads configuration and connects to the destination store.
func openCatalog(c *cli.Context) (*catalogsync.Catalog, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cat, err := catalogsync.Open(c.Context, cfg, catalogsync.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}
	return cat, cfg, nil
}

// confirmDestructive asks before an irreversible operation unless --yes was given.
func confirmDestructive(c *cli.Context, prompt string) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	ok, err := confirm(c.Bool("yes"), interactive, os.Stdin, os.Stderr, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errNotConfirmed
	}
	return nil
}

func confirm(yes, interactive bool, in io.Reader, out io.Writer, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive {
		return false, fmt.Errorf("%s: stdin is not a terminal; pass --yes to proceed", prompt)
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
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
