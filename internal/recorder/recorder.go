package recorder

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
	"github.com/agrif/OctoPrint-InfluxDB/internal/octoprint"
	"github.com/agrif/OctoPrint-InfluxDB/internal/settings"
)

// Backoff and timing defaults.
const (
	// backoffStep is added to the reconnect delay per consecutive failure.
	backoffStep = time.Second

	// maxBackoff caps the reconnect delay.
	maxBackoff = 10 * time.Minute

	// defaultIOTimeout bounds each backend call.
	defaultIOTimeout = backend.DefaultIOTimeout

	// minInterval is the shortest sampling interval; smaller positive
	// settings are raised to it.
	minInterval = time.Millisecond

	// maxIntervalSeconds is the largest interval a time.Duration can hold.
	maxIntervalSeconds = float64(math.MaxInt64 / int64(time.Second))
)

// Logger defines the logging interface for the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Printer is the printer state the recorder samples.
type Printer interface {
	IsOperational(ctx context.Context) (bool, error)
	CurrentTemperatures(ctx context.Context) (octoprint.Temperatures, error)
	CurrentData(ctx context.Context) (*octoprint.CurrentData, error)
	CurrentJob(ctx context.Context) (*octoprint.Job, error)
}

// Settings is the read side of the settings store. Snapshot returns a copy
// that a concurrent reload cannot change.
type Settings interface {
	backend.Settings
	Snapshot() *settings.Store
}

// Options configures a Recorder. Settings and Printer are required.
type Options struct {
	Settings Settings
	Printer  Printer
	Logger   Logger

	// Clock drives backoff and the sampling ticker (default: real clock).
	Clock clock.Clock

	// Opener constructs adapters (default: backend.Open).
	Opener backend.Opener

	// Hostname and FQDN resolve the host tag (defaults: os.Hostname and a
	// reverse DNS lookup).
	Hostname func() (string, error)
	FQDN     func() (string, error)

	// IOTimeout bounds each backend call (default 10s).
	IOTimeout time.Duration
}

// Status is a snapshot of the connection state.
type Status struct {
	Connected   bool
	Config      backend.Config
	Failures    int
	LastAttempt time.Time
	LastError   string
}

// Recorder owns the backend connection and the sampling schedule.
//
// Thread Safety: all methods are safe for concurrent use. Ticker cycles and
// event callbacks are serialised.
type Recorder struct {
	settings  Settings
	printer   Printer
	logger    Logger
	clock     clock.Clock
	open      backend.Opener
	hostname  func() (string, error)
	fqdn      func() (string, error)
	ioTimeout time.Duration

	// ctx parents every ticker and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	adapter     backend.Adapter
	active      backend.Config
	tags        map[string]string
	lastAttempt time.Time
	failures    int
	lastErr     string
	ticker      *ticker
	closed      bool
}

// New creates a disconnected recorder. Call OnStartup to connect.
func New(opts Options) *Recorder {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		settings:  opts.Settings,
		printer:   opts.Printer,
		logger:    opts.Logger,
		clock:     opts.Clock,
		open:      opts.Opener,
		hostname:  opts.Hostname,
		fqdn:      opts.FQDN,
		ioTimeout: opts.IOTimeout,
		ctx:       ctx,
		cancel:    cancel,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.open == nil {
		r.open = backend.Open
	}
	if r.hostname == nil {
		r.hostname = os.Hostname
	}
	if r.fqdn == nil {
		r.fqdn = lookupFQDN
	}
	if r.ioTimeout <= 0 {
		r.ioTimeout = defaultIOTimeout
	}
	return r
}

// OnStartup connects for the first time.
func (r *Recorder) OnStartup(ctx context.Context) bool {
	return r.Reconnect(ctx, true)
}

// OnSettingsSaved reconnects after the settings changed.
func (r *Recorder) OnSettingsSaved(ctx context.Context) bool {
	return r.Reconnect(ctx, true)
}

// Reconnect makes sure a connection matching the current settings exists.
//
// With unchanged settings and a live connection nothing is rebuilt; force
// only restarts the ticker. Otherwise an attempt is made unless it is
// suppressed by backoff (force bypasses backoff). It reports whether the
// recorder is connected afterwards.
func (r *Recorder) Reconnect(ctx context.Context, force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	return r.reconnectLocked(ctx, force)
}

func (r *Recorder) reconnectLocked(ctx context.Context, force bool) bool {
	snap := r.settings.Snapshot()
	cfg := backend.ConfigFromSettings(snap)

	if r.adapter != nil && cfg == r.active {
		if force {
			r.startTickerLocked()
		}
		return true
	}

	now := r.clock.Now()
	if !force && !r.lastAttempt.IsZero() && now.Sub(r.lastAttempt) < r.backoffLocked() {
		r.ensureTickerLocked()
		return false
	}
	r.lastAttempt = now

	r.stopTickerLocked()
	r.teardownLocked()

	r.logger.Info("reconnecting to InfluxDB", "config", cfg)

	adapter, err := r.connect(ctx, cfg)
	if err != nil {
		r.failures++
		r.reportLocked("connecting to InfluxDB", err)
		r.startTickerLocked()
		return false
	}

	r.adapter = adapter
	r.active = cfg
	r.tags = map[string]string{"host": r.resolveHost(snap)}
	r.startTickerLocked()

	r.logger.Info("connected to InfluxDB",
		"api_version", cfg.APIVersion.String(),
		"database", cfg.Database,
		"interval", r.intervalLocked().String(),
	)
	return true
}

// connect opens an adapter and prepares the target database.
func (r *Recorder) connect(ctx context.Context, cfg backend.Config) (backend.Adapter, error) {
	adapter, err := r.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if err := r.prepare(ctx, adapter, cfg.Database); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return adapter, nil
}

func (r *Recorder) prepare(ctx context.Context, adapter backend.Adapter, database string) error {
	ioCtx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()
	if err := adapter.Ping(ioCtx); err != nil {
		return err
	}

	ioCtx, cancel = context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()
	exists, err := adapter.CheckDatabase(ioCtx, database)
	if err != nil {
		return fmt.Errorf("checking database %s: %w", database, err)
	}

	if !exists {
		r.logger.Info("creating InfluxDB database", "database", database)
		ioCtx, cancel = context.WithTimeout(ctx, r.ioTimeout)
		defer cancel()
		if err := adapter.CreateDatabase(ioCtx, database); err != nil {
			return fmt.Errorf("creating database %s: %w", database, err)
		}
	}

	return adapter.SwitchDatabase(database)
}

// teardownLocked closes and forgets the active adapter.
func (r *Recorder) teardownLocked() {
	if r.adapter == nil {
		return
	}
	r.adapter.Close()
	r.adapter = nil
	r.active = backend.Config{}
}

// backoffLocked returns how long an unforced attempt waits after the last one.
func (r *Recorder) backoffLocked() time.Duration {
	d := time.Duration(r.failures) * backoffStep
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// reportLocked logs a failure, tersely when it repeats the previous one.
func (r *Recorder) reportLocked(msg string, err error) {
	text := err.Error()
	if text == r.lastErr {
		r.logger.Debug(msg+" (still failing)", "failures", r.failures)
	} else {
		r.logger.Error(msg, "error", err, "failures", r.failures)
	}
	r.lastErr = text
}

// intervalLocked returns the configured sampling interval.
func (r *Recorder) intervalLocked() time.Duration {
	return intervalFromSeconds(r.settings.GetFloat("interval"))
}

// intervalFromSeconds converts the interval setting to a ticker period.
// Zero, negative, NaN and out-of-range values use the default; tiny
// positive values are clamped to minInterval.
func intervalFromSeconds(seconds float64) time.Duration {
	if !(seconds > 0) || seconds > maxIntervalSeconds {
		seconds = defaultIntervalSeconds
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < minInterval {
		return minInterval
	}
	return d
}

// Status returns a snapshot of the connection state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Connected:   r.adapter != nil,
		Config:      r.active,
		Failures:    r.failures,
		LastAttempt: r.lastAttempt,
		LastError:   r.lastErr,
	}
}

// Close stops sampling and releases the connection. It waits for a running
// cycle to finish.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	t := r.ticker
	r.stopTickerLocked()
	r.teardownLocked()
	r.cancel()
	r.mu.Unlock()

	if t != nil {
		<-t.done
	}
}
