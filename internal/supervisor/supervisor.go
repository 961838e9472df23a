// Package supervisor reconciles the desired scrape target set — the
// static inventory plus an optional periodic inventory script — against
// a live set of per-target scraper.Worker goroutines, starting new
// ones and cancelling ones that fall out of the desired set.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/metrics-ops/ssh-log-exporter/internal/config"
	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/metrics-ops/ssh-log-exporter/internal/parser"
	"github.com/metrics-ops/ssh-log-exporter/internal/scraper"
)

// WorkerFactory constructs and starts a worker for target, returning a
// function that cancels it. Supervisor never touches scraper.Worker
// directly so tests can substitute a fake.
type WorkerFactory func(ctx context.Context, target config.ResolvedTarget) (cancel func(), err error)

// Supervisor owns live_workers and the reload loop.
type Supervisor struct {
	conf    config.SSH
	script  string
	reload  time.Duration
	factory WorkerFactory
	logger  *slog.Logger

	// runScript lets tests substitute the external-process invocation.
	runScript func(ctx context.Context, cmdline string) ([]byte, error)

	mu   sync.Mutex
	live map[string]func() // target_id -> cancel
}

// New constructs a Supervisor. factory is called once per newly
// desired target; logger defaults to slog.Default() when nil.
func New(conf config.SSH, script string, reloadInterval time.Duration, factory WorkerFactory, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		conf:      conf,
		script:    script,
		reload:    reloadInterval,
		factory:   factory,
		logger:    logger.With(slog.String("component", "supervisor")),
		runScript: runExternal,
		live:      make(map[string]func()),
	}
}

// Run reconciles the static inventory once, then — if a script is
// configured — re-invokes it every reload interval (or exactly once
// when the interval is zero/unset, per spec.md §9's open question:
// this implementation terminates the reload loop after that single
// pass rather than blocking forever, so Run returns right after it).
// In every other case Run returns when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.reconcile(ctx, s.conf.Targets()); err != nil {
		return err
	}

	if s.script == "" {
		<-ctx.Done()

		return nil
	}

	if s.reload <= 0 {
		return s.reconcileFromScript(ctx)
	}

	ticker := time.NewTicker(s.reload)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.reconcileFromScript(ctx); err != nil {
				s.logger.WarnContext(ctx, "inventory script reload failed", slog.Any("error", err))
			}
		}
	}
}

// reconcileFromScript invokes s.script, decodes its stdout as the SSH
// inventory shape, and reconciles live workers against the combined
// static + script-derived target set.
func (s *Supervisor) reconcileFromScript(ctx context.Context) error {
	out, err := s.runScript(ctx, s.script)
	if err != nil {
		return fmt.Errorf("supervisor: running inventory script: %w", err)
	}

	var scripted config.SSH
	if err := yaml.Unmarshal(out, &scripted); err != nil {
		return fmt.Errorf("supervisor: decoding inventory script output: %w", err)
	}

	desired := s.conf.Targets()
	desired = append(desired, scripted.Targets()...)

	return s.reconcile(ctx, desired)
}

// reconcile starts a worker for every desired target not yet live, and
// cancels every live worker whose target_id is no longer desired.
// Reconciling against an unchanged desired set starts or cancels
// nothing (property 6, supervisor idempotence).
func (s *Supervisor) reconcile(ctx context.Context, desired []config.ResolvedTarget) error {
	wanted := make(map[string]config.ResolvedTarget, len(desired))
	for _, t := range desired {
		wanted[t.ID()] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.live {
		if _, ok := wanted[id]; !ok {
			cancel()
			delete(s.live, id)
		}
	}

	var errs []error

	for id, target := range wanted {
		if _, ok := s.live[id]; ok {
			continue
		}

		cancel, err := s.factory(ctx, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("starting worker for %s: %w", id, err))

			continue
		}

		s.live[id] = cancel
	}

	return errors.Join(errs...)
}

// LiveTargets reports the target_ids currently tracked as live, for tests.
func (s *Supervisor) LiveTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}

	return ids
}

func runExternal(ctx context.Context, cmdline string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// NewWorkerFactory adapts the scraper package into a WorkerFactory
// bound to a shared column schema and registry. It is the production
// factory cmd/scraper-exporter wires into New: each call builds one
// target-scoped LineParser (base labels environment+host) and runs a
// scraper.Worker for target's lifetime.
func NewWorkerFactory(readers []parser.ColumnReader, reg *metric.Registry, logger *slog.Logger) WorkerFactory {
	return func(ctx context.Context, target config.ResolvedTarget) (func(), error) {
		lp, err := parser.New(readers, metric.Labels{
			"environment": target.Environment,
			"host":        target.Host,
		})
		if err != nil {
			return nil, fmt.Errorf("building parser for %s: %w", target.ID(), err)
		}

		var privateKey []byte
		if target.PrivateKey != "" {
			privateKey, err = readPrivateKey(target.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("reading private key for %s: %w", target.ID(), err)
			}
		}

		w, err := scraper.New(scraper.Config{
			Environment:    target.Environment,
			Host:           target.Host,
			File:           target.File,
			User:           target.User,
			Password:       target.Password,
			PrivateKey:     privateKey,
			ConnectTimeout: time.Duration(target.ConnectTimeout) * time.Second,
			Parser:         lp,
			Registry:       reg,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("building worker for %s: %w", target.ID(), err)
		}

		workerCtx, cancel := context.WithCancel(ctx)

		go w.Run(workerCtx)

		return cancel, nil
	}
}

func readPrivateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}
