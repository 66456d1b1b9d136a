// octoprint-influxdb - OctoPrint to InfluxDB forwarder
//
// This is the main entry point for the forwarder daemon. It samples printer
// state from an OctoPrint server, records OctoPrint events received over
// MQTT, and writes both to InfluxDB 1.x or 2.x.
//
// Connection settings live in a separate settings file that is watched for
// changes; the daemon reconnects whenever it is saved or on SIGHUP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/config"
	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/logging"
	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/mqtt"
	"github.com/agrif/OctoPrint-InfluxDB/internal/octoprint"
	"github.com/agrif/OctoPrint-InfluxDB/internal/recorder"
	"github.com/agrif/OctoPrint-InfluxDB/internal/settings"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the configuration file path.
const configEnvVar = "OCTOPRINT_INFLUXDB_CONFIG"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Running without a subcommand is
// the same as "run".
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "octoprint-influxdb",
		Short:         "Forward OctoPrint printer state and events to InfluxDB",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(cmd.Context(), getConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"configuration file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the forwarder until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWithSignals(cmd.Context(), getConfigPath(configPath))
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Connect to InfluxDB once and report the result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return check(cmd.Context(), getConfigPath(configPath), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "octoprint-influxdb %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

// runWithSignals runs the daemon with a context cancelled on SIGINT/SIGTERM.
func runWithSignals(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, configPath)
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Daemon configuration file (may not exist)
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting octoprint-influxdb",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	store, err := openSettings(cfg.Settings.Path)
	if err != nil {
		return err
	}
	log.Info("settings loaded", "path", store.Path(), "settings", store.Redacted())

	printer := octoprint.NewClient(cfg.OctoPrint.URL, cfg.OctoPrint.APIKey, cfg.GetOctoPrintTimeout())

	rec := recorder.New(recorder.Options{
		Settings: store,
		Printer:  printer,
		Logger:   log,
	})
	defer func() {
		log.Info("stopping recorder")
		rec.Close()
	}()

	if !rec.OnStartup(ctx) {
		log.Warn("InfluxDB not reachable yet, retrying in the background")
	}

	// Event stream (optional)
	var events *mqtt.Client
	if cfg.MQTT.Enabled {
		events, err = startEvents(ctx, cfg.MQTT, printer, rec, log)
		if err != nil {
			log.Warn("event stream unavailable, recording samples only", "error", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := events.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled, events will not be recorded")
	}

	if cfg.Settings.Watch {
		err := store.Watch(ctx, func(err error) {
			if err != nil {
				log.Warn("reloading settings", "error", err)
				return
			}
			log.Info("settings file changed, reconnecting")
			rec.OnSettingsSaved(ctx)
		})
		if err != nil {
			log.Warn("settings watcher unavailable", "error", err)
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info("initialisation complete, waiting for shutdown signal")

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			logStatus(context.Background(), log, rec, events)
			// Deferred Close() calls run in reverse order: MQTT, then the recorder.
			return nil

		case <-hup:
			log.Info("SIGHUP received, reloading settings")
			if err := store.Reload(); err != nil {
				log.Error("reloading settings", "error", err)
			} else {
				rec.OnSettingsSaved(ctx)
			}
			logStatus(ctx, log, rec, events)
		}
	}
}

// loadConfig reads the daemon config, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSettings loads and migrates the settings store.
func openSettings(path string) (*settings.Store, error) {
	store, err := settings.Load(path, recorder.DefaultSettings())
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	store.SetRestricted(recorder.RestrictedPaths...)

	if err := recorder.MigrateSettings(store); err != nil {
		return nil, fmt.Errorf("migrating settings: %w", err)
	}
	return store, nil
}

// startEvents forwards OctoPrint events to the recorder. The subscription is
// registered before connecting so it is applied whenever the broker becomes
// reachable. The returned client is never nil and must be closed.
func startEvents(ctx context.Context, cfg config.MQTTConfig, printer *octoprint.Client, rec *recorder.Recorder, log *logging.Logger) (*mqtt.Client, error) {
	client := mqtt.New(cfg)
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"client_id", cfg.Broker.ClientID,
			"subscriptions", client.Topics(),
		)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	topics := mqtt.Topics{Base: cfg.BaseTopic}
	// #nosec G115 -- qos validated to 0-2 by config.Validate
	if err := octoprint.Subscribe(ctx, client, topics, byte(cfg.QoS), printer, rec.OnEvent); err != nil {
		return client, err
	}

	if err := client.Start(); err != nil {
		if errors.Is(err, mqtt.ErrConnectPending) {
			log.Warn("MQTT broker not reachable yet, retrying in the background", "error", err)
			return client, nil
		}
		return client, err
	}
	return client, nil
}

// logStatus logs the recorder's connection state and, when enabled, the
// event stream's health.
func logStatus(ctx context.Context, log *logging.Logger, rec *recorder.Recorder, events *mqtt.Client) {
	st := rec.Status()
	args := []any{
		"influxdb_connected", st.Connected,
		"failures", st.Failures,
	}
	if st.Connected {
		args = append(args, "config", st.Config)
	}
	if !st.LastAttempt.IsZero() {
		args = append(args, "last_attempt", st.LastAttempt)
	}
	if st.LastError != "" {
		args = append(args, "last_error", st.LastError)
	}
	if events != nil {
		mqttStatus := "ok"
		if err := events.HealthCheck(ctx); err != nil {
			mqttStatus = err.Error()
		}
		args = append(args, "mqtt", mqttStatus, "mqtt_connects", events.Connects())
	}
	log.Info("status", args...)
}

// check connects to InfluxDB with the current settings and reports the result.
func check(ctx context.Context, configPath string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := openSettings(cfg.Settings.Path)
	if err != nil {
		return err
	}

	bcfg := backend.ConfigFromSettings(store.Snapshot())
	fmt.Fprintf(out, "api: %s\n", bcfg.APIVersion)
	fmt.Fprintf(out, "database: %s\n", bcfg.Database)

	adapter, err := backend.Open(bcfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ioCtx, cancel := context.WithTimeout(ctx, backend.DefaultIOTimeout)
	defer cancel()

	if err := adapter.Ping(ioCtx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Fprintln(out, "ping: ok")

	exists, err := adapter.CheckDatabase(ioCtx, bcfg.Database)
	if err != nil {
		return fmt.Errorf("checking database: %w", err)
	}
	if exists {
		fmt.Fprintln(out, "database: exists")
	} else {
		fmt.Fprintln(out, "database: missing (created on first run)")
	}
	return nil
}

// getConfigPath returns the configuration file path: the flag value if set,
// otherwise OCTOPRINT_INFLUXDB_CONFIG, otherwise the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
