package domain

import "time"

// Child is a child profile a parent generates stories for.
type Child struct {
	ID        string
	UserID    string
	Name      string
	BirthDate time.Time
	Gender    string
	Interests []string
	TeddyName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgeAt returns the child's age in whole years at the given time.
func (c Child) AgeAt(now time.Time) int {
	years := now.Year() - c.BirthDate.Year()
	anniversary := c.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
