package emotion

import "time"

// Fatigue is a pure function of wall-clock time returning a fatigue scalar
// in [0, 0.9]. The companion is fresh through the day, tires across the late
// evening, stays tired overnight and recovers across the early morning.
func Fatigue(now time.Time) float64 {
	const peak = 0.9
	h := float64(now.Hour()) + float64(now.Minute())/60

	switch {
	case h >= 9 && h < 21:
		return 0
	case h >= 21: // 21:00-24:00 ramp up over 3h
		return peak * (h - 21) / 3
	case h < 6: // overnight hold
		return peak
	default: // 06:00-09:00 ramp down over 3h
		return peak * (9 - h) / 3
	}
}

// Tolerance derives remaining patience from fatigue and situational load.
// A sustained support need or a topic repeated many times both wear it down.
// Values below 0.4 signal reduced patience to the decision stage.
func Tolerance(fatigue float64, sustainedSupport bool, topicRepeats int) float64 {
	tolerance := 1 - fatigue
	if sustainedSupport {
		tolerance -= 0.2
	}
	if topicRepeats > 2 {
		tolerance -= 0.1 * float64(topicRepeats-2)
	}
	return clamp(tolerance, 0, 1)
}
