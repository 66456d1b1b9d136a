package recorder

import (
	"context"
	"fmt"
	"math"

	"github.com/agrif/OctoPrint-InfluxDB/internal/octoprint"
)

// Measurement names, before prefixing.
const (
	measurementTemperature = "temperature"
	measurementProgress    = "progress"
	measurementFilament    = "filament"
	measurementEvents      = "events"
	measurementState       = "state"
)

// stateEvents trigger a state point in addition to the events point.
var stateEvents = map[string]bool{
	"Connected":           true,
	"Disconnected":        true,
	"PrinterStateChanged": true,
	"PrintStarted":        true,
	"PrintDone":           true,
	"PrintFailed":         true,
	"PrintCancelled":      true,
	"PrintPaused":         true,
	"PrintResumed":        true,
	"FileSelected":        true,
	"FileDeselected":      true,
}

// Gather runs one sampling cycle.
func (r *Recorder) Gather(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.gatherLocked(ctx)
}

func (r *Recorder) gatherLocked(ctx context.Context) {
	if !r.reconnectLocked(ctx, false) {
		return
	}

	operational, err := r.printer.IsOperational(ctx)
	if err != nil {
		r.logger.Debug("querying printer state", "error", err)
		return
	}
	if !operational {
		return
	}

	r.gatherTemperaturesLocked(ctx)

	data, err := r.printer.CurrentData(ctx)
	if err != nil {
		r.logger.Debug("querying job data", "error", err)
		return
	}
	r.gatherProgressLocked(ctx, data)
	r.gatherFilamentLocked(ctx, &data.Job)
}

func (r *Recorder) gatherTemperaturesLocked(ctx context.Context) {
	temps, err := r.printer.CurrentTemperatures(ctx)
	if err != nil {
		r.logger.Debug("querying temperatures", "error", err)
		return
	}

	fields := make(map[string]any)
	for sensor, readings := range temps {
		for name, value := range readings {
			fields[sensor+"_"+name] = value
		}
	}
	if len(fields) > 0 {
		r.emitLocked(ctx, measurementTemperature, fields, nil)
	}
}

func (r *Recorder) gatherProgressLocked(ctx context.Context, data *octoprint.CurrentData) {
	completion := data.Progress.Completion
	if completion == nil {
		return
	}

	fields := make(map[string]any)
	setFloat(fields, "z", data.CurrentZ)
	setInt(fields, "pct", int64(math.RoundToEven(*completion)))
	setFloat(fields, "progress", completion)
	setIntPtr(fields, "file_position", data.Progress.FilePos)
	setIntPtr(fields, "print_time", data.Progress.PrintTime)
	setIntPtr(fields, "print_time_left", data.Progress.PrintTimeLeft)
	setString(fields, "print_time_left_origin", data.Progress.PrintTimeLeftOrigin)

	r.emitLocked(ctx, measurementProgress, fields, nil)
}

func (r *Recorder) gatherFilamentLocked(ctx context.Context, job *octoprint.Job) {
	for tool, usage := range job.Filament {
		if usage == nil || (usage.Length == 0 && usage.Volume == 0) {
			continue
		}

		fields := make(map[string]any)
		setFloat(fields, "length", &usage.Length)
		setFloat(fields, "volume", &usage.Volume)

		tags := map[string]string{"file": job.File.Name, "tool": tool}
		if !r.emitLocked(ctx, measurementFilament, fields, tags) {
			return
		}
	}
}

// OnEvent records a host event. Events arriving while disconnected are dropped.
func (r *Recorder) OnEvent(ctx context.Context, name string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.adapter == nil {
		return
	}

	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		fields[k] = v
	}
	// Transition values mix types across events; store them as text.
	for _, k := range []string{"new", "old"} {
		if v, ok := fields[k]; ok {
			fields[k] = textValue(v)
		}
	}

	if !r.emitLocked(ctx, measurementEvents, fields, map[string]string{"type": name}) {
		return
	}
	if stateEvents[name] {
		r.emitStateLocked(ctx)
	}
}

// emitStateLocked writes the current printer state and job description.
func (r *Recorder) emitStateLocked(ctx context.Context) {
	data, err := r.printer.CurrentData(ctx)
	if err != nil {
		r.logger.Debug("querying printer state", "error", err)
		return
	}
	job, err := r.printer.CurrentJob(ctx)
	if err != nil {
		r.logger.Debug("querying job", "error", err)
		return
	}

	fields := make(map[string]any)
	setString(fields, "state", data.State)
	setFloat(fields, "average_print_time", job.AveragePrintTime)
	setFloat(fields, "estimated_print_time", job.EstimatedPrintTime)
	setFloat(fields, "last_print_time", job.LastPrintTime)
	for tool, usage := range job.Filament {
		if usage == nil {
			continue
		}
		setFloat(fields, "filament_"+tool+"_length", &usage.Length)
		setFloat(fields, "filament_"+tool+"_volume", &usage.Volume)
	}
	setString(fields, "file_name", job.File.Name)
	setString(fields, "file_path", job.File.Path)
	setString(fields, "file_origin", job.File.Origin)
	setIntPtr(fields, "file_size", job.File.Size)
	setIntPtr(fields, "file_date", job.File.Date)

	r.emitLocked(ctx, measurementState, fields, nil)
}

// The set helpers skip falsy values: nil, zero and empty.

func setFloat(fields map[string]any, key string, v *float64) {
	if v != nil && *v != 0 {
		fields[key] = *v
	}
}

func setInt(fields map[string]any, key string, v int64) {
	if v != 0 {
		fields[key] = v
	}
}

func setIntPtr(fields map[string]any, key string, v *int64) {
	if v != nil {
		setInt(fields, key, *v)
	}
}

func setString(fields map[string]any, key, v string) {
	if v != "" {
		fields[key] = v
	}
}

// textValue renders an event value as text; nil becomes "".
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
