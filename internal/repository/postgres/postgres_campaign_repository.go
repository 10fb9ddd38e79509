package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const campaignColumns = `id, charity_id, charity_name, title, description, category, image_url, status, goal_amount, current_amount, donor_count, end_date, created_at, updated_at`

type PostgresCampaignRepository struct {
	db *sql.DB
}

func NewPostgresCampaignRepository(db *sql.DB) *PostgresCampaignRepository {
	return &PostgresCampaignRepository{db: db}
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.CharityID, &c.CharityName, &c.Title, &c.Description, &c.Category, &c.ImageURL,
		&c.Status, &c.GoalAmount, &c.CurrentAmount, &c.DonorCount, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCampaignRepository) List(ctx context.Context, filter models.CampaignFilter) (campaigns []models.Campaign, err error) {
	ctx, _, done := begin(ctx, "campaign-repository", "ListCampaigns")
	defer done(&err)

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CharityID != "" {
		args = append(args, filter.CharityID)
		where = append(where, fmt.Sprintf("charity_id = $%d", len(args)))
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to list campaigns", "method", "List", "status", filter.Status, "charity_id", filter.CharityID, "error", err)
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns = make([]models.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *PostgresCampaignRepository) GetByID(ctx context.Context, id string) (c *models.Campaign, err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "GetCampaignByID")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer done(&err)

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err = scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		err = notFoundOr(err, "campaign", id)
		slog.Error("failed to get campaign", "method", "GetByID", "campaign_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *PostgresCampaignRepository) Create(ctx context.Context, c *models.Campaign) (err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "CreateCampaign")
	defer done(&err)

	if c == nil {
		return pkgerrors.Invalid("campaign", "required")
	}
	span.SetAttributes(attribute.String("campaign_id", c.ID), attribute.String("charity_id", c.CharityID))

	query := `INSERT INTO campaigns (` + campaignColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.db.ExecContext(ctx, query, c.ID, c.CharityID, c.CharityName, c.Title, c.Description, c.Category, c.ImageURL,
		c.Status, c.GoalAmount, c.CurrentAmount, c.DonorCount, c.EndDate, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return &pkgerrors.DuplicateIDError{ID: c.ID}
	}
	if err != nil {
		slog.Error("failed to create campaign", "method", "Create", "campaign_id", c.ID, "error", err)
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	slog.Info("campaign stored", "method", "Create", "campaign_id", c.ID)
	return nil
}

// Update writes the non-nil patch fields. An empty patch is a read.
func (r *PostgresCampaignRepository) Update(ctx context.Context, id string, patch models.CampaignPatch) (c *models.Campaign, err error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	ctx, span, done := begin(ctx, "campaign-repository", "UpdateCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer done(&err)

	var (
		set  []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.EndDate != nil {
		add("end_date", *patch.EndDate)
	}
	if patch.CurrentAmount != nil {
		add("current_amount", *patch.CurrentAmount)
	}
	if patch.DonorCount != nil {
		add("donor_count", *patch.DonorCount)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), campaignColumns)

	c, err = scanCampaign(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		err = notFoundOr(err, "campaign", id)
		slog.Error("failed to update campaign", "method", "Update", "campaign_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *PostgresCampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) (c *models.Campaign, err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "UpdateCampaignStatus")
	span.SetAttributes(attribute.String("campaign_id", id), attribute.String("status", string(status)))
	defer done(&err)

	query := `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + campaignColumns
	c, err = scanCampaign(r.db.QueryRowContext(ctx, query, status, id))
	if err != nil {
		err = notFoundOr(err, "campaign", id)
		slog.Error("failed to update campaign status", "method", "UpdateStatus", "campaign_id", id, "status", status, "error", err)
		return nil, err
	}
	return c, nil
}

// IncrementProgress adds to the total in one statement so concurrent
// donations never lose an update. The donor count is taken from the ledger
// in the same statement rather than incremented.
func (r *PostgresCampaignRepository) IncrementProgress(ctx context.Context, id string, amount int64) (c *models.Campaign, err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "IncrementProgress")
	span.SetAttributes(attribute.String("campaign_id", id), attribute.Int64("amount", amount))
	defer done(&err)

	query := `
		UPDATE campaigns
		SET current_amount = current_amount + $1,
			donor_count = (SELECT COUNT(DISTINCT donor_id) FROM donations WHERE campaign_id = $2),
			updated_at = NOW()
		WHERE id = $2
		RETURNING ` + campaignColumns
	c, err = scanCampaign(r.db.QueryRowContext(ctx, query, amount, id))
	if err != nil {
		err = notFoundOr(err, "campaign", id)
		slog.Error("failed to increment campaign progress", "method", "IncrementProgress", "campaign_id", id, "amount", amount, "error", err)
		return nil, err
	}
	return c, nil
}

// Recount folds the ledger into both counters inside the UPDATE itself.
func (r *PostgresCampaignRepository) Recount(ctx context.Context, id string) (c *models.Campaign, err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "RecountCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer done(&err)

	query := `
		UPDATE campaigns
		SET current_amount = (SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = $1),
			donor_count = (SELECT COUNT(DISTINCT donor_id) FROM donations WHERE campaign_id = $1),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + campaignColumns
	c, err = scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		err = notFoundOr(err, "campaign", id)
		slog.Error("failed to recount campaign", "method", "Recount", "campaign_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *PostgresCampaignRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, span, done := begin(ctx, "campaign-repository", "DeleteCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete campaign", "method", "Delete", "campaign_id", id, "error", err)
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return expectOne(res, "campaign", id)
}
