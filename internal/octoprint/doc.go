// Package octoprint connects the forwarder to a running OctoPrint server.
//
// Printer state comes from the REST API:
//
//   - GET /api/printer for temperatures and the operational flag
//   - GET /api/job for the active job, its file and its progress
//
// Lifecycle events come from the OctoPrint-MQTT plugin, which publishes each
// event on <base>event/<Name> with a JSON payload. DecodeEvent turns such a
// message into a name and a flat payload map; Subscribe wires the decoder to
// an MQTT subscription and tracks the nozzle height reported by ZChange
// events, which the REST API does not expose.
//
//	client := octoprint.NewClient(cfg.OctoPrint.URL, cfg.OctoPrint.APIKey, timeout)
//	ok, err := client.IsOperational(ctx)
package octoprint
