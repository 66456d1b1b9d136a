package backend

import (
	"encoding/json"
	"time"
)

// Point is a single time-series record.
//
// Field values are limited to string, bool, float64 and int64.
type Point struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags"`
	Time        time.Time         `json:"time"`
	Fields      map[string]any    `json:"fields"`
}

// MarshalJSON encodes the point with its timestamp as RFC 3339 UTC ("...Z").
func (p Point) MarshalJSON() ([]byte, error) {
	type wire struct {
		Measurement string            `json:"measurement"`
		Tags        map[string]string `json:"tags"`
		Time        string            `json:"time"`
		Fields      map[string]any    `json:"fields"`
	}
	return json.Marshal(wire{
		Measurement: p.Measurement,
		Tags:        p.Tags,
		Time:        p.Time.UTC().Format(time.RFC3339Nano),
		Fields:      p.Fields,
	})
}
