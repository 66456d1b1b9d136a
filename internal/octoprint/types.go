package octoprint

// Temperatures maps a sensor ("tool0", "bed", "chamber") to its readings
// ("actual", "target", "offset").
type Temperatures map[string]map[string]any

// PrinterState is the state block of /api/printer.
type PrinterState struct {
	Text  string          `json:"text"`
	Flags map[string]bool `json:"flags"`
}

// JobFile describes the file selected for printing.
type JobFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Display string `json:"display"`
	Origin  string `json:"origin"`
	Size    *int64 `json:"size"`
	Date    *int64 `json:"date"`
}

// FilamentUsage is the estimated filament use of one tool.
type FilamentUsage struct {
	Length float64 `json:"length"`
	Volume float64 `json:"volume"`
}

// Job is the job block of /api/job.
type Job struct {
	File               JobFile                   `json:"file"`
	EstimatedPrintTime *float64                  `json:"estimatedPrintTime"`
	AveragePrintTime   *float64                  `json:"averagePrintTime"`
	LastPrintTime      *float64                  `json:"lastPrintTime"`
	Filament           map[string]*FilamentUsage `json:"filament"`
	User               string                    `json:"user"`
}

// Progress is the progress block of /api/job. Completion is a percentage
// and is nil when no print is active.
type Progress struct {
	Completion          *float64 `json:"completion"`
	FilePos             *int64   `json:"filepos"`
	PrintTime           *int64   `json:"printTime"`
	PrintTimeLeft       *int64   `json:"printTimeLeft"`
	PrintTimeLeftOrigin string   `json:"printTimeLeftOrigin"`
}

// CurrentData is the combined live state of the printer.
type CurrentData struct {
	State    string
	Job      Job
	Progress Progress

	// CurrentZ is the last nozzle height seen in a ZChange event.
	CurrentZ *float64
}

// jobResponse is the body of GET /api/job.
type jobResponse struct {
	Job      Job      `json:"job"`
	Progress Progress `json:"progress"`
	State    string   `json:"state"`
}

// printerResponse is the body of GET /api/printer.
type printerResponse struct {
	Temperature map[string]any `json:"temperature"`
	State       PrinterState   `json:"state"`
}
