package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/logger"
	"github.com/cperrin88/mediafetch/pkg/media"
	"github.com/cperrin88/mediafetch/pkg/pipeline"
)

type fetchOptions struct {
	pipeline   string
	input      string
	output     string
	dropFailed bool
	progress   bool
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	opts := fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the media referenced by items",
		Long: `Read JSON items, one per line, download the media URLs of the selected
pipeline's URLs field into the configured store and write every item back with
its results field filled in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runFetch(cmd.Context(), cfg, filepath.Dir(getConfigPath()), opts,
				cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.pipeline, "pipeline", "p", config.KindFiles, "pipeline to run")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "JSONL input file (- for stdin)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "JSONL output file (- for stdout)")
	cmd.Flags().BoolVar(&opts.dropFailed, "drop-failed", false, "drop items none of whose media could be stored")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show progress bars on stderr")

	return cmd
}

func runFetch(ctx context.Context, cfg *config.Config, configDir string, opts fetchOptions,
	stdin io.Reader, stdout, stderr io.Writer) error {
	in := stdin
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	out := stdout
	if opts.output != "" && opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	var (
		pr    *progress
		hooks pipeline.Hooks
	)
	if opts.progress {
		pr = newProgress(ctx, stderr)
		hooks.OnEvent = pr.onEvent
	}

	eng, err := newEngine(ctx, cfg, configDir, opts.pipeline, hooks)
	if err != nil {
		return err
	}
	defer eng.close()
	stop := context.AfterFunc(ctx, func() { eng.coord.Abort(context.Cause(ctx)) })
	defer stop()

	var read, written, dropped atomic.Int64
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	items := make(chan pipeline.Item)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		return readItems(gctx, in, items, func() {
			read.Add(1)
			if pr != nil {
				pr.itemRead()
			}
		})
	})
	g.Go(func() error {
		runner := &pipeline.Runner{Pipeline: eng.pipeline, Jobs: cfg.Settings.Jobs}
		return runner.Run(gctx, items, func(item pipeline.Item, results []pipeline.Result) error {
			logFailures(eng.pipeline.Name, results)
			if opts.dropFailed && !pipeline.Keep(results) {
				dropped.Add(1)
				return nil
			}
			written.Add(1)
			return enc.Encode(item)
		})
	})

	err = g.Wait()
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	if pr != nil {
		pr.finish()
	}

	stats := eng.coord.Stats()
	logger.Info("Fetch finished", logger.Fields{
		"pipeline":  eng.pipeline.Name,
		"items":     read.Load(),
		"written":   written.Load(),
		"dropped":   dropped.Load(),
		"fetches":   stats.Fetches,
		"uptodate":  stats.Uptodate,
		"cached":    stats.CacheHits,
		"coalesced": stats.Coalesced,
		"failures":  stats.Failures,
	})
	return err
}

// readItems decodes one JSON object per line and sends it on items. Blank
// lines are skipped.
func readItems(ctx context.Context, in io.Reader, items chan<- pipeline.Item, onItem func()) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxItemSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var item pipeline.Item
		if err := dec.Decode(&item); err != nil || item == nil {
			if err == nil {
				err = fmt.Errorf("not an object")
			}
			return errors.Wrapf(errors.ErrInvalidItem, "line %d: %v", line, err)
		}

		onItem()
		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func logFailures(name string, results []pipeline.Result) {
	for _, r := range results {
		if r.OK {
			continue
		}
		logger.Warn("Media not stored", logger.Fields{
			"pipeline": name,
			"url":      r.Outcome.URL,
			"reason":   media.Reason(r.Outcome.Err),
			"error":    r.Outcome.Err,
		})
	}
}
