package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
	"github.com/agrif/OctoPrint-InfluxDB/internal/octoprint"
	"github.com/agrif/OctoPrint-InfluxDB/internal/settings"
)

// fakeBackend is shared state behind every adapter a fakeOpener hands out,
// standing in for one InfluxDB server.
type fakeBackend struct {
	mu        sync.Mutex
	databases map[string]bool
	configs   []backend.Config
	adapters  []*fakeAdapter
	points    []backend.Point
	rps       []string
	created   []string

	openErr  error
	pingErr  error
	writeErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{databases: map[string]bool{}}
}

func (b *fakeBackend) open(cfg backend.Config) (backend.Adapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configs = append(b.configs, cfg)
	if b.openErr != nil {
		return nil, b.openErr
	}
	a := &fakeAdapter{b: b}
	b.adapters = append(b.adapters, a)
	return a, nil
}

func (b *fakeBackend) opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.configs)
}

func (b *fakeBackend) written() []backend.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backend.Point(nil), b.points...)
}

func (b *fakeBackend) setWriteErr(err error) {
	b.mu.Lock()
	b.writeErr = err
	b.mu.Unlock()
}

func (b *fakeBackend) setPingErr(err error) {
	b.mu.Lock()
	b.pingErr = err
	b.mu.Unlock()
}

type fakeAdapter struct {
	b        *fakeBackend
	database string
	closed   bool
}

func (a *fakeAdapter) Ping(context.Context) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	return a.b.pingErr
}

func (a *fakeAdapter) CheckDatabase(_ context.Context, name string) (bool, error) {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	return a.b.databases[name], nil
}

func (a *fakeAdapter) CreateDatabase(_ context.Context, name string) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.b.databases[name] = true
	a.b.created = append(a.b.created, name)
	return nil
}

func (a *fakeAdapter) SwitchDatabase(name string) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.database = name
	return nil
}

func (a *fakeAdapter) WritePoints(_ context.Context, points []backend.Point, rp string) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	if a.closed {
		return errors.New("write on closed adapter")
	}
	if a.b.writeErr != nil {
		return a.b.writeErr
	}
	a.b.points = append(a.b.points, points...)
	a.b.rps = append(a.b.rps, rp)
	return nil
}

func (a *fakeAdapter) Close() {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.closed = true
}

// fakePrinter serves canned printer state.
type fakePrinter struct {
	mu          sync.Mutex
	operational bool
	temps       octoprint.Temperatures
	data        octoprint.CurrentData
	job         octoprint.Job
	err         error
}

func (p *fakePrinter) IsOperational(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.operational, p.err
}

func (p *fakePrinter) CurrentTemperatures(context.Context) (octoprint.Temperatures, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temps, p.err
}

func (p *fakePrinter) CurrentData(context.Context) (*octoprint.CurrentData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := p.data
	return &data, p.err
}

func (p *fakePrinter) CurrentJob(context.Context) (*octoprint.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job := p.job
	return &job, p.err
}

// logEntry is one captured log call.
type logEntry struct {
	level string
	msg   string
}

// captureLogger records log calls.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg})
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

// testEnv wires a recorder to fakes.
type testEnv struct {
	store   *settings.Store
	backend *fakeBackend
	printer *fakePrinter
	clock   *clock.Mock
	logger  *captureLogger
	rec     *Recorder
}

// newTestEnv builds a recorder over a v2 settings file with the given overrides.
func newTestEnv(t *testing.T, values map[string]any) *testEnv {
	t.Helper()

	store, err := settings.Load(filepath.Join(t.TempDir(), "influxdb.yaml"), DefaultSettings())
	if err != nil {
		t.Fatalf("settings.Load() error = %v", err)
	}
	base := map[string]any{
		"api_version": 2,
		"v2.url":      "http://influx:8086",
		"v2.token":    "tok",
		"v2.org":      "acme",
	}
	for k, v := range values {
		base[k] = v
	}
	for k, v := range base {
		if err := store.Set(k, v); err != nil {
			t.Fatalf("Set(%s) error = %v", k, err)
		}
	}

	env := &testEnv{
		store:   store,
		backend: newFakeBackend(),
		printer: &fakePrinter{},
		clock:   clock.NewMock(),
		logger:  &captureLogger{},
	}
	env.clock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	env.rec = New(Options{
		Settings: store,
		Printer:  env.printer,
		Logger:   env.logger,
		Clock:    env.clock,
		Opener:   env.backend.open,
		Hostname: func() (string, error) { return "octopi", nil },
		FQDN:     func() (string, error) { return "octopi.example.com", nil },
	})
	t.Cleanup(env.rec.Close)
	return env
}

// pointsNamed filters written points by measurement.
func pointsNamed(points []backend.Point, measurement string) []backend.Point {
	var out []backend.Point
	for _, p := range points {
		if p.Measurement == measurement {
			out = append(out, p)
		}
	}
	return out
}
