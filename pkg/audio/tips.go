package audio

import "time"

// Coaching messages shown while recording a reference clip.
const (
	TipStart     = "请开始录制"
	TipKeepGoing = "继续说话"
	TipTooShort  = "录制时长太短"
	TipGood      = "录制时长合适"
	TipTooLong   = "录制时长太长"
)

// DurationTip returns the coaching message for a recording of ms milliseconds.
// Branches are evaluated in order and the first match wins, so 1000 and 4000 both
// land on TipKeepGoing.
func DurationTip(ms int64) string {
	switch {
	case ms <= 0:
		return TipStart
	case ms <= 1000:
		return TipKeepGoing
	case ms <= 3000:
		return TipTooShort
	case ms <= 4000:
		return TipKeepGoing
	case ms > 10000:
		return TipTooLong
	default:
		return TipGood
	}
}

// TipFor is DurationTip for a time.Duration.
func TipFor(d time.Duration) string {
	return DurationTip(d.Milliseconds())
}

// GoodLength reports whether d falls in the recommended window.
func GoodLength(d time.Duration) bool {
	return TipFor(d) == TipGood
}
