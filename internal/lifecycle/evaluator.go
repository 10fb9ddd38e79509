// Package lifecycle derives a campaign's display and eligibility state from
// its stored fields and the current time. Nothing here is persisted.
package lifecycle

import (
	"math"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

const day = 24 * time.Hour

type State struct {
	IsActive      bool    `json:"is_active"`
	IsCompleted   bool    `json:"is_completed"`
	IsExpired     bool    `json:"is_expired"`
	PercentFunded float64 `json:"percent_funded"`
	DaysRemaining int     `json:"days_remaining"`
}

// Evaluate computes every derived field of c at now.
func Evaluate(c models.Campaign, now time.Time) State {
	completed := IsCompleted(c)
	expired := IsExpired(c, now)
	return State{
		IsActive:      c.Status == models.CampaignApproved && !completed && !expired,
		IsCompleted:   completed,
		IsExpired:     expired,
		PercentFunded: PercentFunded(c),
		DaysRemaining: DaysRemaining(c, now),
	}
}

// PercentFunded is the raw current/goal ratio. It is not capped: an
// over-funded campaign reports more than 1. A non-positive goal yields 0.
func PercentFunded(c models.Campaign) float64 {
	if c.GoalAmount <= 0 {
		return 0
	}
	return float64(c.CurrentAmount) / float64(c.GoalAmount)
}

func IsCompleted(c models.Campaign) bool {
	return c.CurrentAmount >= c.GoalAmount
}

// IsExpired compares the start of now's day against the last millisecond of
// the end date, so a campaign stays open for the whole of its final day.
func IsExpired(c models.Campaign, now time.Time) bool {
	return StartOfDay(now).After(EndOfDay(c.EndDate, now.Location()))
}

func IsActive(c models.Campaign, now time.Time) bool {
	return Evaluate(c, now).IsActive
}

// CanAcceptDonation is the authorization-time eligibility check.
func CanAcceptDonation(c models.Campaign, now time.Time) bool {
	return IsActive(c, now)
}

// DaysRemaining rounds up to whole days until the end of the end date and
// never goes below zero.
func DaysRemaining(c models.Campaign, now time.Time) int {
	left := EndOfDay(c.EndDate, now.Location()).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(day)))
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
