package backend

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
)

// v2 transport defaults.
const (
	defaultV2URL = "http://localhost:8086"

	// bucketPageSize is the largest page the buckets endpoint returns.
	bucketPageSize = 100

	// requestTimeoutSeconds bounds each HTTP request made by the client.
	requestTimeoutSeconds = uint(DefaultIOTimeout / time.Second)
)

// v2Adapter speaks the InfluxDB 2.x API. Databases are buckets.
type v2Adapter struct {
	client influxdb2.Client
	cfg    Config
	bucket string

	// signIn guards the lazy username/password session.
	signIn   sync.Mutex
	signedIn bool
}

func openV2(cfg Config) (Adapter, error) {
	url := cfg.URL
	if url == "" {
		url = defaultV2URL
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(requestTimeoutSeconds)
	if !cfg.VerifySSL {
		// #nosec G402 -- operator explicitly disabled certificate verification
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &v2Adapter{
		client: influxdb2.NewClientWithOptions(url, cfg.Token, opts),
		cfg:    cfg,
	}, nil
}

// ensureSession signs in once when username/password auth is configured.
func (a *v2Adapter) ensureSession(ctx context.Context) error {
	if a.cfg.Username == "" {
		return nil
	}

	a.signIn.Lock()
	defer a.signIn.Unlock()
	if a.signedIn {
		return nil
	}
	if err := a.client.UsersAPI().SignIn(ctx, a.cfg.Username, a.cfg.Password); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	a.signedIn = true
	return nil
}

// Ping checks the /ping endpoint.
func (a *v2Adapter) Ping(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	ok, err := a.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !ok {
		return ErrNotReady
	}
	return nil
}

// CheckDatabase walks the bucket list page by page looking for name.
// When an organisation is configured only its buckets are considered.
func (a *v2Adapter) CheckDatabase(ctx context.Context, name string) (bool, error) {
	if err := a.ensureSession(ctx); err != nil {
		return false, err
	}

	buckets := a.client.BucketsAPI()
	for offset := 0; ; offset += bucketPageSize {
		paging := []api.PagingOption{
			api.PagingWithLimit(bucketPageSize),
			api.PagingWithOffset(offset),
		}

		var err error
		var page *[]domain.Bucket
		if a.cfg.Org != "" {
			page, err = buckets.FindBucketsByOrgName(ctx, a.cfg.Org, paging...)
		} else {
			page, err = buckets.GetBuckets(ctx, paging...)
		}
		if err != nil {
			return false, fmt.Errorf("listing buckets: %w", err)
		}
		if page == nil {
			return false, nil
		}

		for _, b := range *page {
			if b.Name == name {
				return true, nil
			}
		}
		if len(*page) < bucketPageSize {
			return false, nil
		}
	}
}

// CreateDatabase creates a bucket in the configured organisation.
func (a *v2Adapter) CreateDatabase(ctx context.Context, name string) error {
	if a.cfg.Org == "" {
		return ErrOrgRequired
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	org, err := a.client.OrganizationsAPI().FindOrganizationByName(ctx, a.cfg.Org)
	if err != nil {
		return fmt.Errorf("finding organisation: %w", err)
	}
	if _, err := a.client.BucketsAPI().CreateBucketWithName(ctx, org, name); err != nil {
		return fmt.Errorf("creating bucket %s: %w", name, err)
	}
	return nil
}

// SwitchDatabase selects the bucket subsequent writes go to.
func (a *v2Adapter) SwitchDatabase(name string) error {
	a.bucket = name
	return nil
}

// WritePoints writes synchronously to the selected bucket. The retention
// policy has no v2 equivalent and is ignored.
func (a *v2Adapter) WritePoints(ctx context.Context, points []Point, _ string) error {
	if a.bucket == "" {
		return ErrNoDatabase
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}

	if err := a.client.WriteAPIBlocking(a.cfg.Org, a.bucket).WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close ends any sign-in session and releases the client.
func (a *v2Adapter) Close() {
	a.signIn.Lock()
	if a.signedIn {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultIOTimeout)
		_ = a.client.UsersAPI().SignOut(ctx)
		cancel()
		a.signedIn = false
	}
	a.signIn.Unlock()

	a.client.Close()
}
