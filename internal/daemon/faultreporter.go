package daemon

import "log/slog"

// FaultReporter is the daemon's out-of-band channel for reporting
// operational faults (distinct from the request-path error returns in
// internal/cderrors). The core only specifies that it exists and is
// initialized once at startup; the reporting mechanism itself is an
// external collaborator.
type FaultReporter interface {
	ReportFault(code string, detail string)
}

// LoggingFaultReporter is the default FaultReporter: it logs every
// fault at error level. Sufficient for a daemon with no separate
// fault-telemetry pipeline.
type LoggingFaultReporter struct {
	logger *slog.Logger
}

// NewLoggingFaultReporter builds a FaultReporter that logs through logger.
func NewLoggingFaultReporter(logger *slog.Logger) *LoggingFaultReporter {
	return &LoggingFaultReporter{logger: logger}
}

func (r *LoggingFaultReporter) ReportFault(code string, detail string) {
	r.logger.Error("fault reported", "code", code, "detail", detail)
}
