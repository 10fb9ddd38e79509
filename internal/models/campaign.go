package models

import "time"

type Campaign struct {
	ID            string         `json:"id"`
	CharityID     string         `json:"charity_id"`
	CharityName   string         `json:"charity_name,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	Status        CampaignStatus `json:"status"`
	GoalAmount    int64          `json:"goal_amount"`
	CurrentAmount int64          `json:"current_amount"`
	DonorCount    int            `json:"donor_count"`
	EndDate       time.Time      `json:"end_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type CampaignStatus string

const (
	CampaignPending  CampaignStatus = "pending"
	CampaignApproved CampaignStatus = "approved"
	CampaignRejected CampaignStatus = "rejected"
)

// Valid reports whether s is one of the review states.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignPending, CampaignApproved, CampaignRejected:
		return true
	}
	return false
}

// CanTransition reports whether an admin may move a campaign from s to next.
// Only pending campaigns can be reviewed; approved and rejected are terminal.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	return s == CampaignPending && (next == CampaignApproved || next == CampaignRejected)
}

// VisibleTo reports whether actor may see c. Approved campaigns are public;
// pending and rejected ones are shown only to their charity and admins.
func (c Campaign) VisibleTo(actor Actor) bool {
	if c.Status == CampaignApproved {
		return true
	}
	return (actor.UID != "" && actor.UID == c.CharityID) || actor.Is(RoleAdmin)
}

// MinGoalAmount is the smallest goal a new campaign may declare.
const MinGoalAmount int64 = 1000

// CampaignFilter narrows List. Zero fields match everything.
type CampaignFilter struct {
	Status    CampaignStatus
	CharityID string
}

// CampaignPatch carries the mutable campaign fields. Nil fields are left untouched.
type CampaignPatch struct {
	Title         *string
	Description   *string
	Category      *string
	ImageURL      *string
	EndDate       *time.Time
	CurrentAmount *int64
	DonorCount    *int
}

func (p CampaignPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.ImageURL == nil &&
		p.EndDate == nil && p.CurrentAmount == nil && p.DonorCount == nil
}

// Apply writes the non-nil patch fields onto c.
func (p CampaignPatch) Apply(c *Campaign) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.CurrentAmount != nil {
		c.CurrentAmount = *p.CurrentAmount
	}
	if p.DonorCount != nil {
		c.DonorCount = *p.DonorCount
	}
}
