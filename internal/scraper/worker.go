// Package scraper implements the per-target SSH tail worker: one
// (host, file) connection lifecycle, state machine, and reconnect
// backoff, feeding parsed lines into the shared metric registry.
package scraper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/metrics-ops/ssh-log-exporter/internal/parser"
	"golang.org/x/crypto/ssh"
)

// state is one node of the Idle -> Connecting -> Tailing ->
// Disconnected -> Idle machine from spec.md §4.3.
type state int

const (
	stateIdle state = iota
	stateConnecting
	stateTailing
	stateDisconnected
)

const (
	defaultConnectTimeout = 30 * time.Second
	backoffInitial        = time.Second
	backoffMax            = 30 * time.Second
)

// Dialer opens an SSH client connection. The production implementation
// is DialSSH; tests substitute an in-process server dialer.
type Dialer func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)

// Config is everything a Worker needs to construct one tail connection.
type Config struct {
	Environment    string
	Host           string
	File           string
	User           string
	Password       string
	PrivateKey     []byte // private key file contents (PEM), optional; parsed at connect time
	ConnectTimeout time.Duration
	// Addr overrides the dial target, normally "<Host>:22". Tests use
	// this to point at an in-process SSH server on an ephemeral port.
	Addr string

	Parser   *parser.LineParser
	Registry *metric.Registry
	Logger   *slog.Logger

	Dialer Dialer // optional override, defaults to DialSSH
}

// Worker runs one target's connect/tail/backoff lifecycle for as long
// as Run's context is not cancelled.
type Worker struct {
	cfg    Config
	logger *slog.Logger
	dial   Dialer

	mu    sync.Mutex
	state state
}

// New validates cfg and returns a Worker ready for Run.
func New(cfg Config) (*Worker, error) {
	if cfg.Parser == nil {
		return nil, errors.New("scraper: Config.Parser is required")
	}

	if cfg.Registry == nil {
		return nil, errors.New("scraper: Config.Registry is required")
	}

	if cfg.Host == "" || cfg.File == "" {
		return nil, errors.New("scraper: Config.Host and Config.File are required")
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "scraper"),
		slog.String("environment", cfg.Environment),
		slog.String("host", cfg.Host),
		slog.String("file", cfg.File),
	)

	dial := cfg.Dialer
	if dial == nil {
		dial = DialSSH
	}

	return &Worker{cfg: cfg, logger: logger, dial: dial}, nil
}

// TargetID matches the supervisor's target_id convention: "ssh://<host>/<file>".
func (w *Worker) TargetID() string {
	return "ssh://" + w.cfg.Host + "/" + w.cfg.File
}

func (w *Worker) setState(s state) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// State reports the worker's current lifecycle state, for tests.
func (w *Worker) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateTailing:
		return "tailing"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Run drives the worker through its state machine until ctx is
// cancelled. It never returns an error: every failure is reported
// through the connected gauge and logs, per spec.md §7 (TransportError
// is recovered, never fatal).
func (w *Worker) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffInitial
	bo.MaxInterval = backoffMax
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // never give up; the supervisor owns cancellation

	labels := metric.Labels{"environment": w.cfg.Environment, "host": w.cfg.Host}

	for {
		if ctx.Err() != nil {
			w.setConnected(0, labels)

			return
		}

		w.setState(stateIdle)
		w.setConnected(0, labels)

		if !w.sleepBackoff(ctx, bo.NextBackOff()) {
			return
		}

		w.setState(stateConnecting)

		sessionID := uuid.NewString()
		sessionLogger := w.logger.With(slog.String("session_id", sessionID))

		client, session, stdout, err := w.connect(ctx)
		if err != nil {
			sessionLogger.WarnContext(ctx, "ssh connect failed", slog.Any("error", err))
			w.setState(stateDisconnected)

			continue
		}

		w.setState(stateTailing)
		w.setConnected(1, labels)

		lines, tailErr := w.tail(ctx, stdout)

		_ = session.Close()
		_ = client.Close()

		w.setState(stateDisconnected)
		w.setConnected(0, labels)

		if lines > 0 {
			bo.Reset()
		}

		if tailErr != nil && !errors.Is(tailErr, context.Canceled) {
			sessionLogger.WarnContext(ctx, "tail stream ended", slog.Any("error", tailErr), slog.Int("lines", lines))
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (w *Worker) setConnected(v float64, labels metric.Labels) {
	_ = w.cfg.Registry.Add(metric.NameConnected, labels, v)
}

// sleepBackoff waits for d or until ctx is cancelled, reporting false
// when cancellation won.
func (w *Worker) sleepBackoff(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// connect opens the SSH client and starts "tail -n0 -F -- <file>" on
// it, returning the client, session, and the session's stdout pipe.
func (w *Worker) connect(ctx context.Context) (*ssh.Client, *ssh.Session, *bufio.Reader, error) {
	authMethods, err := w.authMethods()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scraper: building auth methods: %w", err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            w.cfg.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // operational tail scraper, not a security boundary
		Timeout:         w.cfg.ConnectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()

	addr := w.cfg.Addr
	if addr == "" {
		addr = net.JoinHostPort(w.cfg.Host, "22")
	}

	client, err := w.dial(dialCtx, addr, clientCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scraper: dial %s: %w", w.cfg.Host, err)
	}

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()

		return nil, nil, nil, fmt.Errorf("scraper: new session: %w", err)
	}

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()

		return nil, nil, nil, fmt.Errorf("scraper: stdout pipe: %w", err)
	}

	cmd := fmt.Sprintf("tail -n0 -F -- %s", shellQuote(w.cfg.File))

	if err := session.Start(cmd); err != nil {
		_ = session.Close()
		_ = client.Close()

		return nil, nil, nil, fmt.Errorf("scraper: start %q: %w", cmd, err)
	}

	// Cancellation closes the client, which unblocks the stdout read.
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	return client, session, bufio.NewReader(stdoutPipe), nil
}

// tail reads newline-delimited log lines from stdout until EOF, a
// stream error, or cancellation, submitting each to the parser. It
// returns the number of lines successfully read (regardless of
// whether the parser accepted them).
func (w *Worker) tail(ctx context.Context, stdout *bufio.Reader) (int, error) {
	lines := 0

	for {
		line, err := stdout.ReadString('\n')
		if len(line) > 0 {
			lines++

			if submitErr := w.cfg.Parser.Submit(w.cfg.Registry, trimNewline(line)); submitErr != nil {
				w.logger.DebugContext(ctx, "parse error", slog.Any("error", submitErr))
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return lines, context.Canceled
			}

			return lines, err //nolint:wrapcheck
		}
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}

	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}

	return s
}

// shellQuote wraps path in single quotes for the remote tail command,
// escaping any embedded single quote the POSIX-shell way.
func shellQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
