package kafka

import "time"

const (
	EventDonationRecorded = "donation_recorded"
	EventReconcileRequest = "reconcile_requested"
)

// DonationEvent is published after a donation is appended to the ledger.
type DonationEvent struct {
	EventType     string    `json:"event_type"`
	DonationID    string    `json:"donation_id"`
	CampaignID    string    `json:"campaign_id"`
	DonorID       string    `json:"donor_id"`
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReconcileRequest asks a consumer to rebuild a campaign aggregate from the ledger.
type ReconcileRequest struct {
	EventType   string    `json:"event_type"`
	CampaignID  string    `json:"campaign_id"`
	DonationID  string    `json:"donation_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
