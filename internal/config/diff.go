package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be acted on without restarting the device are tracked individually;
// everything else sets RestartNeeded.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VolumeStepChanged bool
	NewVolumeStep     int

	TelemetryIntervalChanged bool

	// RestartNeeded is set when a change touches wiring that is fixed at
	// startup (audio geometry, providers, listen address, mode).
	RestartNeeded bool
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VolumeStepChanged &&
		!d.TelemetryIntervalChanged && !d.RestartNeeded
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Device.LogLevel != new.Device.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Device.LogLevel
	}
	if old.Actions.VolumeStep != new.Actions.VolumeStep {
		d.VolumeStepChanged = true
		d.NewVolumeStep = new.Actions.VolumeStep
	}
	if old.Telemetry.Interval != new.Telemetry.Interval {
		d.TelemetryIntervalChanged = true
	}

	if old.Device.Name != new.Device.Name ||
		old.Device.Mode != new.Device.Mode ||
		old.Audio != new.Audio ||
		old.Wake != new.Wake ||
		old.Speech != new.Speech ||
		old.Actions.Media != new.Actions.Media ||
		old.Actions.Lights != new.Actions.Lights ||
		old.Telemetry.URL != new.Telemetry.URL ||
		old.Metrics != new.Metrics {
		d.RestartNeeded = true
	}

	return d
}
