package aicontext

import "time"

const DefaultWindowDays = 7

// Window is a half-open [Start, End) range of local calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow covers the calendar days from today-days through today,
// inclusive, in now's location.
func TrailingWindow(now time.Time, days int) Window {
	if days < 0 {
		days = 0
	}
	y, m, d := now.Date()
	loc := now.Location()
	return Window{
		Start: time.Date(y, m, d-days, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
