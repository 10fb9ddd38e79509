package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const donationColumns = `id, donor_id, donor_name, campaign_id, amount, payment_method, COALESCE(transaction_id, ''), anonymous, message, status, created_at`

// PostgresDonationRepository is append only: there is no update or delete.
type PostgresDonationRepository struct {
	db *sql.DB
}

func NewPostgresDonationRepository(db *sql.DB) *PostgresDonationRepository {
	return &PostgresDonationRepository{db: db}
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var d models.Donation
	err := row.Scan(&d.ID, &d.DonorID, &d.DonorName, &d.CampaignID, &d.Amount, &d.PaymentMethod,
		&d.TransactionID, &d.Anonymous, &d.Message, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDonationRepository) Append(ctx context.Context, d *models.Donation) (err error) {
	ctx, span, done := begin(ctx, "donation-repository", "AppendDonation")
	defer done(&err)

	if d == nil {
		return pkgerrors.Invalid("donation", "required")
	}
	span.SetAttributes(
		attribute.String("donation_id", d.ID),
		attribute.String("campaign_id", d.CampaignID),
		attribute.Int64("amount", d.Amount),
	)

	// Empty idempotency keys are stored as NULL so the unique index ignores them.
	query := `
		INSERT INTO donations (id, donor_id, donor_name, campaign_id, amount, payment_method, transaction_id, anonymous, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query, d.ID, d.DonorID, d.DonorName, d.CampaignID, d.Amount, d.PaymentMethod,
		d.TransactionID, d.Anonymous, d.Message, d.Status, d.CreatedAt)
	if constraint, ok := violatedConstraint(err); ok {
		if constraint == donationsTransactionKey {
			slog.Warn("transaction id already recorded", "method", "Append", "transaction_id", d.TransactionID, "donation_id", d.ID)
			return &pkgerrors.DuplicateTransactionError{TransactionID: d.TransactionID}
		}
		return &pkgerrors.DuplicateIDError{ID: d.ID}
	}
	if err != nil {
		slog.Error("failed to append donation", "method", "Append", "donation_id", d.ID, "campaign_id", d.CampaignID, "error", err)
		return fmt.Errorf("failed to append donation: %w", err)
	}
	slog.Info("donation stored", "method", "Append", "donation_id", d.ID, "campaign_id", d.CampaignID, "amount", d.Amount)
	return nil
}

func (r *PostgresDonationRepository) ListByUser(ctx context.Context, userID string) (donations []models.Donation, err error) {
	ctx, span, done := begin(ctx, "donation-repository", "ListDonationsByUser")
	span.SetAttributes(attribute.String("donor_id", userID))
	defer done(&err)

	return r.query(ctx, `SELECT `+donationColumns+` FROM donations WHERE donor_id = $1 ORDER BY created_at, id`, userID)
}

func (r *PostgresDonationRepository) ListByCampaign(ctx context.Context, campaignID string) (donations []models.Donation, err error) {
	ctx, span, done := begin(ctx, "donation-repository", "ListDonationsByCampaign")
	span.SetAttributes(attribute.String("campaign_id", campaignID))
	defer done(&err)

	return r.query(ctx, `SELECT `+donationColumns+` FROM donations WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
}

func (r *PostgresDonationRepository) List(ctx context.Context) (donations []models.Donation, err error) {
	ctx, _, done := begin(ctx, "donation-repository", "ListDonations")
	defer done(&err)

	return r.query(ctx, `SELECT `+donationColumns+` FROM donations ORDER BY created_at, id`)
}

func (r *PostgresDonationRepository) GetByTransactionID(ctx context.Context, transactionID string) (d *models.Donation, err error) {
	ctx, span, done := begin(ctx, "donation-repository", "GetDonationByTransactionID")
	span.SetAttributes(attribute.String("transaction_id", transactionID))
	defer done(&err)

	query := `SELECT ` + donationColumns + ` FROM donations WHERE transaction_id = $1`
	d, err = scanDonation(r.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		return nil, notFoundOr(err, "donation", transactionID)
	}
	return d, nil
}

func (r *PostgresDonationRepository) query(ctx context.Context, query string, args ...any) ([]models.Donation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to query donations", "error", err)
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	donations := make([]models.Donation, 0)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donations: %w", err)
	}
	return donations, nil
}
