package audio

// Levels holds the rectified mean amplitude per microphone channel, used by
// the LED visualiser to make the device sound-reactive. Combined is the mean
// of the per-channel values for single-indicator displays.
type Levels struct {
	Channels []float64
	Combined float64
}

// MeasureLevels computes the rectified mean amplitude of each channel in an
// interleaved PCM block. A nil or short block yields zero levels. channels
// values below 1 are treated as mono.
func MeasureLevels(samples []int16, channels int) Levels {
	if channels < 1 {
		channels = 1
	}
	lv := Levels{Channels: make([]float64, channels)}
	frames := len(samples) / channels
	if frames == 0 {
		return lv
	}

	sums := make([]int64, channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := int64(samples[i*channels+c])
			if v < 0 {
				v = -v
			}
			sums[c] += v
		}
	}

	var total float64
	for c := range sums {
		lv.Channels[c] = float64(sums[c]) / float64(frames)
		total += lv.Channels[c]
	}
	lv.Combined = total / float64(channels)
	return lv
}

// RectifiedMean returns the mean absolute amplitude of a PCM block,
// regardless of channel layout. This is the energy measure the front-end
// adapter uses for its fallback voice-activity estimate.
func RectifiedMean(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return float64(sum) / float64(len(samples))
}
