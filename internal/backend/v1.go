package backend

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

// v1 transport defaults.
const (
	defaultV1Host    = "localhost"
	defaultV1Port    = 8086
	defaultV1UDPPort = 4444

	v1UserAgent = "octoprint-influxdb"
)

// v1Adapter speaks the InfluxDB 1.x HTTP API, optionally writing over UDP.
//
// Queries (ping, database listing and creation) always go over HTTP; with
// UDP enabled the configured port is the UDP port and HTTP uses 8086.
type v1Adapter struct {
	http     client.Client
	udp      client.Client
	database string
}

func openV1(cfg Config) (Adapter, error) {
	host := cfg.Host
	if host == "" {
		host = defaultV1Host
	}

	httpPort := defaultV1Port
	if cfg.Port > 0 && !cfg.UDP {
		httpPort = cfg.Port
	}

	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}

	httpClient, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:               fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(httpPort))),
		Username:           cfg.Username,
		Password:           cfg.Password,
		UserAgent:          v1UserAgent,
		Timeout:            DefaultIOTimeout,
		InsecureSkipVerify: cfg.SSL && !cfg.VerifySSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	a := &v1Adapter{http: httpClient}

	if cfg.UDP {
		udpPort := defaultV1UDPPort
		if cfg.Port > 0 {
			udpPort = cfg.Port
		}
		udpClient, err := client.NewUDPClient(client.UDPConfig{
			Addr: net.JoinHostPort(host, strconv.Itoa(udpPort)),
		})
		if err != nil {
			httpClient.Close()
			return nil, fmt.Errorf("%w: udp: %w", ErrConnectionFailed, err)
		}
		a.udp = udpClient
	}

	return a, nil
}

// Ping checks the /ping endpoint. The context deadline, if any, bounds the wait.
func (a *v1Adapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if _, _, err := a.http.Ping(timeout); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// query runs an InfluxQL statement and surfaces statement-level errors.
func (a *v1Adapter) query(ctx context.Context, command string) (*client.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := a.http.Query(client.NewQuery(command, "", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, command, err)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, command, err)
	}
	return resp, nil
}

// CheckDatabase looks for name in SHOW DATABASES.
func (a *v1Adapter) CheckDatabase(ctx context.Context, name string) (bool, error) {
	resp, err := a.query(ctx, "SHOW DATABASES")
	if err != nil {
		return false, err
	}

	for _, result := range resp.Results {
		for _, series := range result.Series {
			for _, row := range series.Values {
				if len(row) == 0 {
					continue
				}
				if db, ok := row[0].(string); ok && db == name {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// CreateDatabase issues CREATE DATABASE for name.
func (a *v1Adapter) CreateDatabase(ctx context.Context, name string) error {
	_, err := a.query(ctx, "CREATE DATABASE "+quoteIdent(name))
	return err
}

// quoteIdent quotes an InfluxQL identifier.
func quoteIdent(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// SwitchDatabase selects the database subsequent writes go to.
func (a *v1Adapter) SwitchDatabase(name string) error {
	a.database = name
	return nil
}

// WritePoints writes a batch over UDP when enabled, otherwise over HTTP.
func (a *v1Adapter) WritePoints(ctx context.Context, points []Point, retentionPolicy string) error {
	if a.database == "" {
		return ErrNoDatabase
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:        a.database,
		RetentionPolicy: retentionPolicy,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	for _, p := range points {
		pt, err := client.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
		if err != nil {
			return fmt.Errorf("%w: point %s: %w", ErrWriteFailed, p.Measurement, err)
		}
		bp.AddPoint(pt)
	}

	writer := a.http
	if a.udp != nil {
		writer = a.udp
	}
	if err := writer.Write(bp); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close releases both transports.
func (a *v1Adapter) Close() {
	_ = a.http.Close()
	if a.udp != nil {
		_ = a.udp.Close()
	}
}
