package quota

import "time"

// Window はnowが属する暦日の [start, reset) をloc基準で返す。
// 日付演算はtime.Dateで行うため、夏時間の切り替え日でも日の境界がずれない。
func Window(now time.Time, loc *time.Location) (start, reset time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	reset = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, reset
}

// Clock は現在時刻を返す。
type Clock interface {
	Now() time.Time
}

// ClockFunc は関数をClockとして扱うアダプタ。
type ClockFunc func() time.Time

// Now はClockを実装する。
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock はtime.Nowを返すClock。
var SystemClock Clock = ClockFunc(time.Now)
