// Package stats folds campaigns and donations into dashboard summaries.
// Every function is a pure read-side projection.
package stats

import (
	"sort"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/lifecycle"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

// ImpactUnit is the amount counted as one life impacted on the donor dashboard.
const ImpactUnit int64 = 1000

type DonorStats struct {
	TotalDonated       int64 `json:"total_donated"`
	CampaignsSupported int   `json:"campaigns_supported"`
	Impact             int64 `json:"impact"`
	ThisMonthTotal     int64 `json:"this_month_total"`
	DonationCount      int   `json:"donation_count"`
}

type Counts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Archived  int `json:"archived"`
}

type MonthTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

type CharitySummary struct {
	CharityID   string       `json:"charity_id"`
	TotalRaised int64        `json:"total_raised"`
	TotalDonors int          `json:"total_donors"`
	SuccessRate float64      `json:"success_rate"`
	Campaigns   Counts       `json:"campaigns"`
	Monthly     []MonthTotal `json:"monthly"`
}

type AdminSummary struct {
	ByStatus       map[models.CampaignStatus]int `json:"by_status"`
	Lifecycle      Counts                        `json:"lifecycle"`
	TotalRaised    int64                         `json:"total_raised"`
	TotalDonations int                           `json:"total_donations"`
	UniqueDonors   int                           `json:"unique_donors"`
}

// UserDonationStats summarises donorID's donations. The month is the
// calendar month of now in now's location.
func UserDonationStats(donorID string, donations []models.Donation, now time.Time) DonorStats {
	var st DonorStats
	supported := make(map[string]struct{})
	y, m, _ := now.Date()
	for _, d := range donations {
		if d.DonorID != donorID {
			continue
		}
		st.TotalDonated += d.Amount
		st.DonationCount++
		supported[d.CampaignID] = struct{}{}
		dy, dm, _ := d.CreatedAt.In(now.Location()).Date()
		if dy == y && dm == m {
			st.ThisMonthTotal += d.Amount
		}
	}
	st.CampaignsSupported = len(supported)
	st.Impact = st.TotalDonated / ImpactUnit
	return st
}

// CharitySuccessRate averages each campaign's funding ratio capped at 100%.
// The cap applies only here; lifecycle.PercentFunded stays uncapped.
func CharitySuccessRate(charityID string, campaigns []models.Campaign) float64 {
	var sum float64
	var n int
	for _, c := range campaigns {
		if c.CharityID != charityID {
			continue
		}
		sum += cappedRatio(c)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 100
}

func cappedRatio(c models.Campaign) float64 {
	ratio := lifecycle.PercentFunded(c)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// LifecycleCounts tallies derived states. Completed and Archived overlap,
// so they need not add up to Total.
func LifecycleCounts(campaigns []models.Campaign, now time.Time) Counts {
	counts := Counts{Total: len(campaigns)}
	for _, c := range campaigns {
		st := lifecycle.Evaluate(c, now)
		if st.IsActive {
			counts.Active++
		}
		if st.IsCompleted {
			counts.Completed++
		}
		if st.IsExpired {
			counts.Archived++
		}
	}
	return counts
}

// MonthlyTotals buckets donation amounts by YYYY-MM in loc, oldest first.
func MonthlyTotals(donations []models.Donation, loc *time.Location) []MonthTotal {
	buckets := make(map[string]int64)
	for _, d := range donations {
		buckets[d.CreatedAt.In(loc).Format("2006-01")] += d.Amount
	}
	out := make([]MonthTotal, 0, len(buckets))
	for month, total := range buckets {
		out = append(out, MonthTotal{Month: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Charity builds the charity dashboard. Only donations to the charity's own
// campaigns are counted.
func Charity(charityID string, campaigns []models.Campaign, donations []models.Donation, now time.Time) CharitySummary {
	own := make([]models.Campaign, 0)
	ids := make(map[string]struct{})
	for _, c := range campaigns {
		if c.CharityID == charityID {
			own = append(own, c)
			ids[c.ID] = struct{}{}
		}
	}
	received := make([]models.Donation, 0)
	for _, d := range donations {
		if _, ok := ids[d.CampaignID]; ok {
			received = append(received, d)
		}
	}
	return CharitySummary{
		CharityID:   charityID,
		TotalRaised: ledger.Sum(received),
		TotalDonors: ledger.UniqueDonors(received),
		SuccessRate: CharitySuccessRate(charityID, own),
		Campaigns:   LifecycleCounts(own, now),
		Monthly:     MonthlyTotals(received, now.Location()),
	}
}

func Admin(campaigns []models.Campaign, donations []models.Donation, now time.Time) AdminSummary {
	byStatus := map[models.CampaignStatus]int{
		models.CampaignPending:  0,
		models.CampaignApproved: 0,
		models.CampaignRejected: 0,
	}
	for _, c := range campaigns {
		byStatus[c.Status]++
	}
	return AdminSummary{
		ByStatus:       byStatus,
		Lifecycle:      LifecycleCounts(campaigns, now),
		TotalRaised:    ledger.Sum(donations),
		TotalDonations: len(donations),
		UniqueDonors:   ledger.UniqueDonors(donations),
	}
}
