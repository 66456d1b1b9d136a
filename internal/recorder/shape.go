package recorder

import (
	"math"
	"time"

	"github.com/agrif/OctoPrint-InfluxDB/internal/backend"
)

// reservedKey cannot be used as a tag or field name.
const reservedKey = "time"

// renamedKey replaces reservedKey.
const renamedKey = reservedKey + "_"

// dummyField is written when a point would otherwise have no fields.
const dummyField = "_dummy"

// Shape builds a point from raw values.
//
// Common and extra tags are merged (extra wins). A tag or field named "time"
// is renamed to "time_"; when the same map also has an explicit "time_" key,
// that key wins and "time" is dropped. Empty tag values are dropped. Fields keep only
// strings, booleans, finite floats and integers; integers are widened to
// int64 and float32 to float64, and values that do not fit are dropped. An
// empty field set becomes {"_dummy": 0}. The measurement is prefixed and the
// timestamp converted to UTC.
func Shape(prefix, measurement string, common, extra map[string]string, fields map[string]any, now time.Time) backend.Point {
	tags := make(map[string]string, len(common)+len(extra))
	for _, src := range []map[string]string{common, extra} {
		_, explicit := src[renamedKey]
		for k, v := range src {
			if v == "" || (explicit && k == reservedKey) {
				continue
			}
			tags[renameReserved(k)] = v
		}
	}

	_, explicit := fields[renamedKey]
	shaped := make(map[string]any, len(fields))
	for k, v := range fields {
		if explicit && k == reservedKey {
			continue
		}
		if value, ok := fieldValue(v); ok {
			shaped[renameReserved(k)] = value
		}
	}
	if len(shaped) == 0 {
		shaped[dummyField] = int64(0)
	}

	return backend.Point{
		Measurement: prefix + measurement,
		Tags:        tags,
		Time:        now.UTC(),
		Fields:      shaped,
	}
}

func renameReserved(key string) string {
	if key == reservedKey {
		return renamedKey
	}
	return key
}

// fieldValue normalises a field value to one of the kinds InfluxDB accepts.
func fieldValue(v any) (any, bool) {
	switch val := v.(type) {
	case string, bool:
		return val, true
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return uintValue(val)
	default:
		return nil, false
	}
}

func finite(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func uintValue(u uint64) (any, bool) {
	if u > math.MaxInt64 {
		return nil, false
	}
	return int64(u), true
}
