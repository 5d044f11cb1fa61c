package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/insight"
	"github.com/poiesic/insight/batch"
	"github.com/poiesic/insight/config"
	"github.com/poiesic/insight/ingestion"
	"github.com/poiesic/insight/metrics"
	"github.com/poiesic/insight/rag"
	"github.com/poiesic/insight/server"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
)

// engineOptions lets tests inject a provider.
var engineOptions []insight.Option

func openEngine(ctx context.Context, cfg config.Config, opts ...insight.Option) (*insight.Engine, error) {
	return insight.New(ctx, cfg, append(append([]insight.Option(nil), engineOptions...), opts...)...)
}

func indexCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("index requires exactly one CSV file argument", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []insight.Option
	if c.Bool("progress") {
		opts = append(opts, insight.WithProgress(c.App.ErrWriter))
	}
	engine, err := openEngine(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.IndexFile(ctx, c.Args().First())
	if result != nil {
		printResult(c.App.Writer, result)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "index holds %d profiles\n", engine.VectorIndex().Len())
	return nil
}

func printResult(w io.Writer, result *batch.Result) {
	if result.Complete() {
		fmt.Fprintln(w, success(result.Summary()))
		return
	}
	fmt.Fprintln(w, warning(result.Summary()))
	for _, be := range result.Failed {
		fmt.Fprintf(w, "  %s %v\n", failure("failed"), be)
	}
}

func queryCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var queries []string
	switch {
	case c.Bool("examples"):
		queries = rag.ExampleQueries
	case c.NArg() > 0:
		queries = []string{c.Args().First()}
	default:
		return cli.Exit("query requires a question or --examples", 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if path := c.String("data"); path != "" {
		result, err := engine.IndexFile(ctx, path)
		if err != nil {
			return err
		}
		printResult(c.App.ErrWriter, result)
	}

	out := c.App.Writer
	var failed int
	for _, q := range queries {
		fmt.Fprintf(out, "\n%s\n\n", heading("=== Query: "+q+" ==="))

		if c.Bool("show-context") {
			hits, err := engine.Search(ctx, q, cfg.Query.K)
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "%s %v\n", failure("Error retrieving context:"), err)
			} else {
				for _, h := range hits {
					fmt.Fprintf(out, "  %.2f  %s\n", h.Score, h.Record.Summary)
				}
				fmt.Fprintln(out)
			}
		}

		analysis, err := engine.Query(ctx, q, cfg.Query.K)
		if err != nil {
			// One failed question does not stop the rest
			fmt.Fprintf(c.App.ErrWriter, "%s %v\n", failure("Error analyzing query:"), err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s\n%s\n", success("Analysis:"), analysis)
	}

	if failed == len(queries) {
		return fmt.Errorf("all %d queries failed", failed)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine.Pipeline(),
		server.WithIndexStats(engine.VectorIndex()),
		server.WithDefaultK(cfg.Query.K),
	)

	g, gctx := errgroup.WithContext(ctx)
	if path := c.String("data"); path != "" {
		// Queries are served while the file is indexed
		g.Go(func() error {
			result, err := engine.IndexFile(gctx, path)
			if result != nil {
				printResult(c.App.ErrWriter, result)
			}
			return err
		})
	}
	g.Go(func() error {
		return srv.ListenAndServe(gctx,
			fmt.Sprintf(":%d", cfg.HTTP.Port),
			time.Duration(cfg.HTTP.ReadTimeoutSec)*time.Second,
			time.Duration(cfg.HTTP.WriteTimeoutSec)*time.Second,
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
		)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func generateCommand(c *cli.Context) error {
	count := c.Int("count")
	if count < 0 {
		return cli.Exit("count must not be negative", 1)
	}

	var w io.Writer = c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return ingestion.Write(w, ingestion.Generate(count, c.Uint64("seed")))
}
