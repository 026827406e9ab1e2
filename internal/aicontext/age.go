package aicontext

import "time"

// AgeOn returns the whole years elapsed between birthday and now. The year
// difference is reduced by one until now reaches the birthday's month and day.
func AgeOn(birthday, now time.Time) int {
	by, bm, bd := birthday.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// AgeOn is nil when the profile has no birthday stored.
func (p Profile) AgeOn(now time.Time) *int {
	if p.Birthday == nil || p.Birthday.IsZero() {
		return nil
	}
	age := AgeOn(*p.Birthday, now)
	return &age
}
