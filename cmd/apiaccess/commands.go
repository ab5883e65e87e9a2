package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
	"github.com/wadahiro/apiaccess/internal/attempt"
	"github.com/wadahiro/apiaccess/internal/bridge"
	"github.com/wadahiro/apiaccess/internal/config"
	"github.com/wadahiro/apiaccess/internal/dialer"
	"github.com/wadahiro/apiaccess/internal/log"
	"github.com/wadahiro/apiaccess/internal/transport"
	"github.com/wadahiro/apiaccess/internal/ui"
)

var logger = log.For(log.ComponentCLI)

// environment is everything a command needs, built from the settings file
// and the global flags.
type environment struct {
	cfg    *config.MergedConfig
	repo   *accessmethod.FileRepository
	loader *bridge.CachingLoader
}

func loadEnvironment(c *cli.Context) (*environment, error) {
	path := c.String("config")
	app, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	var profile *config.Profile
	if name := c.String("profile"); name != "" {
		p, ok := app.GetProfile(name)
		if !ok {
			return nil, fmt.Errorf("profile not found: %s", name)
		}
		profile = &p
	}

	cfg := config.Merge(app, profile, &config.CLIFlags{
		APIAddress:      c.String("api-address"),
		Timeout:         c.Duration("timeout"),
		MaxAttempts:     c.Int("max-attempts"),
		BridgeSourceURL: c.String("bridge-source-url"),
		BridgeCacheFile: c.String("bridge-cache-file"),
		BridgeURIs:      c.StringSlice("bridge-uri"),
	})

	repo, err := accessmethod.NewFileRepository(path, c.String("profile"))
	if err != nil {
		return nil, err
	}

	loader, err := newLoader(cfg.Bridge)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, repo: repo, loader: loader}, nil
}

// newLoader prefers static ss:// URIs and falls back to the relay list.
func newLoader(s config.BridgeSettings) (*bridge.CachingLoader, error) {
	var chain bridge.ChainSource
	if len(s.URIs) > 0 {
		static, err := bridge.NewStaticSource(s.URIs)
		if err != nil {
			return nil, err
		}
		chain = append(chain, static)
	}
	if s.SourceURL != "" {
		chain = append(chain, bridge.NewHTTPSource(s.SourceURL))
	}

	opts := []bridge.Option{bridge.WithTTL(s.TTL)}
	if s.CacheFile != "" {
		opts = append(opts, bridge.WithCacheFile(s.CacheFile))
	}
	return bridge.NewCachingLoader(chain, opts...), nil
}

func (e *environment) strategy(ds accessmethod.DataSource) (*transport.Strategy, error) {
	s, err := transport.NewStrategy(ds, e.loader,
		transport.WithReloadFailureThreshold(e.cfg.Bridge.ReloadFailureThreshold),
		transport.WithReloadEscalation(func(count int, err error) {
			fmt.Fprintf(os.Stderr, "[!] Bridge list could not be refreshed %d times in a row: %v\n", count, err)
		}),
	)
	if errors.Is(err, accessmethod.ErrNoEnabledMethods) {
		return nil, fmt.Errorf("%w: enable at least one entry in %s", err, e.repo.Path())
	}
	return s, err
}

func (e *environment) probe(tls bool) *dialer.Probe {
	return &dialer.Probe{
		Dialer:  dialer.New(dialer.WithTimeout(e.cfg.Timeout)),
		Address: e.cfg.APIAddress,
		Timeout: e.cfg.Timeout,
		TLS:     tls,
	}
}

func methodsAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	ui.FormatMethodList(os.Stdout, env.repo.All())
	return nil
}

func pickAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	strategy, err := env.strategy(env.repo)
	if err != nil {
		return err
	}

	ctx := c.Context
	for i := 0; i < c.Int("fail"); i++ {
		logger.Debug("Recording simulated failure", "method", strategy.Current().String())
		strategy.DidFail(ctx)
	}

	// Resolving may rotate away from an unavailable bridges method, so the
	// method is read afterwards.
	t := strategy.ConnectionTransport(ctx)
	method := strategy.Current()

	w := c.App.Writer
	fmt.Fprintf(w, "Method:    %s\n", method)
	fmt.Fprintf(w, "Transport: %s\n", t)
	if t.IsNone() {
		fmt.Fprintln(w, "No usable transport right now, try again later.")
	}
	return nil
}

func testAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}

	var method accessmethod.Method
	if id := c.String("id"); id != "" {
		method, err = env.repo.Store().Get(id)
		if err != nil {
			return fmt.Errorf("%w: %s", err, id)
		}
	} else {
		selected, err := ui.DefaultMethodSelector().SelectMethod(env.repo.Store().Enabled())
		if err != nil {
			return err
		}
		method = *selected
	}

	// A single-method strategy resolves exactly this method, even if it is
	// disabled in the settings file.
	method.Enabled = true
	store, err := accessmethod.NewStore([]accessmethod.Method{method})
	if err != nil {
		return err
	}
	strategy, err := env.strategy(store)
	if err != nil {
		return err
	}

	t := strategy.ConnectionTransport(c.Context)
	if t.IsNone() {
		return fmt.Errorf("%s: no usable transport", method)
	}

	fmt.Printf("Testing %s via %s against %s...\n", method, t, env.cfg.APIAddress)
	if err := env.probe(c.Bool("tls")).Connect(c.Context, t); err != nil {
		return fmt.Errorf("%s is not working: %w", method, err)
	}
	fmt.Printf("%s works\n", method)
	return nil
}

func connectAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.repo.Close()

	strategy, err := env.strategy(env.repo)
	if err != nil {
		return err
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n[!] Received signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if c.Bool("watch") {
		if err := env.repo.Watch(ctx); err != nil {
			return err
		}
		changes, unsubscribe := env.repo.Store().Subscribe()
		defer unsubscribe()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-changes:
					fmt.Printf("[*] Settings changed, next attempt uses %s\n", strategy.Current())
				}
			}
		}()
	}

	fmt.Println("=== apiaccess ===")
	fmt.Printf("API: %s\n", env.cfg.APIAddress)
	fmt.Printf("Max attempts: %d\n", env.cfg.MaxAttempts)
	fmt.Println()

	loop := attempt.NewLoop(strategy, env.probe(c.Bool("tls")),
		attempt.WithMaxAttempts(env.cfg.MaxAttempts),
		attempt.WithBackoff(env.cfg.InitialBackoff, env.cfg.MaxBackoff),
		attempt.WithObserver(printAttempt),
	)

	t, err := loop.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	fmt.Printf("Connected via %s\n", t)
	return nil
}

func printAttempt(a attempt.Attempt) {
	switch {
	case a.Err == nil:
		fmt.Printf("  #%d %s: ok\n", a.Number, a.Transport)
	case a.Blocked:
		fmt.Printf("  #%d %s: blocked (%v)\n", a.Number, a.Transport, a.Err)
	default:
		fmt.Printf("  #%d %s: failed (%v)\n", a.Number, a.Transport, a.Err)
	}
	if a.Backoff > 0 {
		fmt.Printf("     retrying in %s\n", a.Backoff)
	}
}
