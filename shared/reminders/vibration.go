package reminders

import "time"

// waveforms are vibrate-pause-vibrate offsets in milliseconds.
var waveforms = map[VibrationPattern][]int64{
	VibrationShort:     {0, 200},
	VibrationDefault:   {0, 500, 100, 500},
	VibrationLong:      {0, 1000},
	VibrationPulsating: {0, 300, 100, 300, 100, 300, 100, 300},
}

// String returns the pattern name.
func (p VibrationPattern) String() string {
	switch p {
	case VibrationShort:
		return "short"
	case VibrationDefault:
		return "default"
	case VibrationLong:
		return "long"
	case VibrationPulsating:
		return "pulsating"
	default:
		return "unknown"
	}
}

// ParseVibrationPattern accepts a pattern name.
func ParseVibrationPattern(s string) (VibrationPattern, bool) {
	for p := VibrationShort; p <= VibrationPulsating; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return VibrationDefault, false
}

// WaveformMillis returns the raw millisecond waveform for p. Unknown
// patterns map to the default waveform.
func WaveformMillis(p VibrationPattern) []int64 {
	w, ok := waveforms[p]
	if !ok {
		w = waveforms[VibrationDefault]
	}
	return append([]int64(nil), w...)
}

// Waveform returns the waveform for p as durations.
func Waveform(p VibrationPattern) []time.Duration {
	ms := WaveformMillis(p)
	out := make([]time.Duration, len(ms))
	for i, v := range ms {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}
