// Package recorder samples printer state and writes it to InfluxDB.
//
// A Recorder owns the single backend connection and everything that touches
// it: the reconnect state machine, the sampling ticker and point emission.
// All of that state sits behind one mutex, so ticker cycles and MQTT event
// callbacks never interleave.
//
// # Connection Lifecycle
//
//	disconnected ──Reconnect──▶ connecting ──ok──▶ connected
//	     ▲                          │                  │
//	     └──────────error───────────┘◀───write error───┘
//
// Reconnect attempts are gated by a linear backoff: after N consecutive
// failures the next unforced attempt waits N seconds, capped at ten minutes.
// Startup and settings changes force an attempt. A successful write resets
// the failure count.
//
// # Points
//
// Every cycle emits:
//   - temperature: one field per sensor reading ({sensor}_{reading})
//   - progress: position and timing of the active print
//   - filament: estimated usage per tool, tagged with file and tool
//
// Every host event emits an events point tagged with the event type; state
// transitions additionally emit a state point describing the job.
//
// Points are shaped by Shape before writing: tags are merged, the reserved
// key "time" is renamed, unsupported field values are dropped, and the
// measurement name is prefixed.
package recorder
