package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/hooks"
	"github.com/cperrin88/mediafetch/pkg/logger"
	"github.com/cperrin88/mediafetch/pkg/media"
	"github.com/cperrin88/mediafetch/pkg/pipeline"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// basePriority is the scheduler priority of ordinary requests; media
// requests run one above it.
const basePriority = 0

// engine is one pipeline wired to its store, transport and coordinator.
type engine struct {
	http     *fetch.HTTPClient
	store    storage.Store
	coord    *media.Coordinator
	pipeline *pipeline.Pipeline
}

// newEngine builds the components of the named pipeline. configDir resolves
// relative path script locations.
func newEngine(ctx context.Context, cfg *config.Config, configDir, name string, h pipeline.Hooks) (*engine, error) {
	pc, err := cfg.Pipeline(name)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var script *hooks.PathScript
	if pc.PathScript != "" {
		path := pc.PathScript
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}
		script, err = hooks.LoadPathScript(path, pc.PathVars)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", pc.Name, err)
		}
	}

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	client := fetch.NewScheduler(httpClient, cfg.Settings.Concurrency)

	opts := media.ProcessorOptions{
		Store:          store,
		Client:         client,
		Script:         script,
		AllowRedirects: pc.AllowRedirects,
		Priority:       basePriority + 1,
		MinWidth:       pc.MinWidth,
		MinHeight:      pc.MinHeight,
		Thumbs:         pc.Thumbs,
	}
	var proc media.Processor
	switch pc.Kind {
	case config.KindImages:
		proc = media.NewImageProcessor(opts)
	default:
		proc = media.NewFileProcessor(opts)
	}

	coord := media.NewCoordinator(store, client, proc, media.Options{
		AllowRedirects: pc.AllowRedirects,
		BasePriority:   basePriority,
		Retention:      cfg.Settings.Retention,
		Expiry:         pc.Expiry(),
	})

	logger.Debug("Pipeline ready", logger.Fields{
		"pipeline": pc.Name,
		"kind":     pc.Kind,
		"store":    cfg.Store.URI,
		"script":   pc.PathScript,
	})

	return &engine{
		http:     httpClient,
		store:    store,
		coord:    coord,
		pipeline: pipeline.New(pc.Name, pc.URLsField, pc.ResultsField, coord, h),
	}, nil
}

// newHTTPClient builds the transport from the settings and auth sections.
func newHTTPClient(cfg *config.Config) (*fetch.HTTPClient, error) {
	hosts, err := cfg.AuthHosts()
	if err != nil {
		return nil, err
	}
	return fetch.NewHTTPClient(fetch.HTTPOptions{
		Timeout:      cfg.Settings.HTTPTimeout,
		UserAgent:    cfg.Settings.UserAgent,
		MaxRedirects: cfg.Settings.MaxRedirects,
		Auth:         hosts,
	}), nil
}

// close waits for in-flight resolutions and releases the transport.
func (e *engine) close() {
	e.coord.Wait()
	_ = e.http.Close()
}
