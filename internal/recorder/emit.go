package recorder

import (
	"context"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
)

// emitLocked shapes and writes one point through the active adapter.
//
// A write error is treated as a lost connection: the adapter is discarded
// and a backoff-gated reconnect is attempted. It reports whether the point
// was written.
func (r *Recorder) emitLocked(ctx context.Context, measurement string, fields map[string]any, tags map[string]string) bool {
	if r.adapter == nil {
		return false
	}

	point := Shape(r.active.Prefix, measurement, r.tags, tags, fields, r.clock.Now())

	ioCtx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	err := r.adapter.WritePoints(ioCtx, []backend.Point{point}, r.active.RetentionPolicy)
	cancel()

	if err != nil {
		r.failures++
		r.reportLocked("writing to InfluxDB", err)
		r.stopTickerLocked()
		r.teardownLocked()
		r.reconnectLocked(ctx, false)
		return false
	}

	r.failures = 0
	r.lastErr = ""
	return true
}
