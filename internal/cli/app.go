package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/compiler"
	"github.com/roach88/restbridge/internal/config"
	"github.com/roach88/restbridge/internal/metrics"
	"github.com/roach88/restbridge/internal/pgrpc"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/registry"
	"github.com/roach88/restbridge/internal/rest"
	"github.com/roach88/restbridge/internal/store"
	"github.com/roach88/restbridge/internal/syncer"
)

// app holds the components a command needs, built from config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	reg      *registry.Registry
	escape   *cache.Cache[string]
	encoder  *postgrest.Encoder
	compiler *compiler.Compiler
	metrics  *metrics.Recorder

	closers []func() error
}

// newApp loads config and the registry, and installs the logger on w.
func newApp(opts *RootOptions, w io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.Getenv)
	if err != nil {
		return nil, &configError{err}
	}
	if opts.RegistryDir != "" {
		cfg.RegistryDir = opts.RegistryDir
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := newLogger(cfg.Log, w)
	if err != nil {
		return nil, &configError{err}
	}

	reg, err := registry.Load(cfg.RegistryDir)
	if err != nil {
		return nil, err
	}

	rec := metrics.New("")
	escape := cache.New[string](cache.Options{
		Name: "escape",
		Max:  cfg.Cache.EscapeMax,
		TTL:  cfg.Cache.EscapeTTL,
	})
	rec.WatchCache(escape.Name(), escape.Stats)
	enc := postgrest.NewEncoder(postgrest.NewEscaper(escape))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		escape:  escape,
		encoder: enc,
		compiler: compiler.New(compiler.Options{
			Router:   registry.NewRouter(reg),
			Encoder:  enc,
			Logger:   logger,
			Observer: rec,
		}),
		metrics: rec,
	}
	if opts.MetricsFile != "" {
		a.closers = append(a.closers, func() error { return rec.WriteTextfile(opts.MetricsFile) })
	}
	return a, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// restClient builds the PostgREST client. The endpoint is required.
func (a *app) restClient() (*rest.Client, error) {
	if a.cfg.Endpoint == "" {
		return nil, &configError{errors.New("no endpoint configured (set endpoint or RESTBRIDGE_ENDPOINT)")}
	}
	var hc *http.Client
	if a.cfg.Timeout > 0 {
		hc = &http.Client{Timeout: a.cfg.Timeout}
	}
	c, err := rest.New(rest.Options{
		Endpoint:   a.cfg.Endpoint,
		APIKey:     a.cfg.APIKey,
		Schema:     a.cfg.Schema,
		RateLimit:  a.cfg.RateLimit,
		Burst:      a.cfg.Burst,
		HTTPClient: hc,
		Encoder:    a.encoder,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, &configError{err}
	}
	return c, nil
}

// caller returns the procedure caller for the configured transport.
func (a *app) caller(ctx context.Context) (syncer.Caller, error) {
	if a.cfg.Transport == config.TransportPostgres {
		c, err := pgrpc.Connect(ctx, pgrpc.Config{URL: a.cfg.DatabaseURL, Schema: a.cfg.Schema},
			pgrpc.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		return c, nil
	}
	return a.restClient()
}

// journal opens the sync journal, or returns nil when none is configured.
func (a *app) journal() (*store.Store, error) {
	if a.cfg.JournalPath == "" {
		return nil, nil
	}
	s, err := store.Open(a.cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// syncer builds a Syncer over the configured transport and journal.
func (a *app) syncer(ctx context.Context) (*syncer.Syncer, error) {
	caller, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	opts := []syncer.Option{syncer.WithLogger(a.logger), syncer.WithRecorder(a.metrics)}
	j, err := a.journal()
	if err != nil {
		return nil, err
	}
	if j != nil {
		opts = append(opts, syncer.WithJournal(j))
	}
	return syncer.New(caller, opts...), nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
