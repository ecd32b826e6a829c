package status

import "log/slog"

// LogIndicator is an [Indicator] that writes state changes to the log. It
// backs deployments without an LED ring, such as the simulated device.
type LogIndicator struct {
	logger *slog.Logger
}

var _ Indicator = (*LogIndicator)(nil)

// NewLogIndicator returns a LogIndicator. A nil logger falls back to
// [slog.Default].
func NewLogIndicator(logger *slog.Logger) *LogIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogIndicator{logger: logger}
}

// Indicate implements [Indicator].
func (i *LogIndicator) Indicate(state State) {
	i.logger.Info("indicator", "state", state)
}
