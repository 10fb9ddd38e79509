package models

import "time"

type Donation struct {
	ID            string         `json:"id"`
	DonorID       string         `json:"donor_id"`
	DonorName     string         `json:"donor_name,omitempty"`
	CampaignID    string         `json:"campaign_id"`
	Amount        int64          `json:"amount"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Anonymous     bool           `json:"anonymous"`
	Message       string         `json:"message,omitempty"`
	Status        DonationStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

type DonationStatus string

const (
	DonationCompleted DonationStatus = "completed"
)

// MinDonationAmount is the policy floor applied when a donor submits a donation.
const MinDonationAmount int64 = 100

// Disclosed returns the donation as it may be shown to viewerID.
// Anonymous donations hide the donor from everyone except the donor.
func (d Donation) Disclosed(viewerID string) Donation {
	if d.Anonymous && d.DonorID != viewerID {
		d.DonorID = ""
		d.DonorName = ""
	}
	return d
}
