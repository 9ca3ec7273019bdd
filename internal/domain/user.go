package domain

import "time"

// UserPlan enumerates subscription tiers.
type UserPlan string

const (
	UserPlanFree    UserPlan = "free"
	UserPlanPremium UserPlan = "premium"
	UserPlanFamily  UserPlan = "family"
)

// User represents a parent account within the platform.
type User struct {
	ID         string
	SupabaseID string
	Email      string
	Name       string
	Locale     string
	Plan       UserPlan
	QuotaDaily int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	QuotaUsed  int // derived field for remaining quota calculations
}

// DefaultQuotaFor returns the daily story allowance assigned to new
// accounts on the given tier.
func DefaultQuotaFor(plan UserPlan) int {
	switch plan {
	case UserPlanPremium:
		return 10
	case UserPlanFamily:
		return 20
	default:
		return 1
	}
}

// IsFree reports whether the user is on the free tier.
func (u User) IsFree() bool {
	return u.Plan == UserPlanFree
}

// RemainingQuota returns how many stories the user may still generate today.
func (u User) RemainingQuota() int {
	remaining := u.QuotaDaily - u.QuotaUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
