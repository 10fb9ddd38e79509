package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	redismocks "github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis/mocks"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository/memory"
	repomocks "github.com/honeynil/CrowdfundServiceTochka/internal/repository/mocks"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCampaignService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	valid := CreateCampaignInput{Title: "School roof", GoalAmount: 5000, EndDate: testNow.AddDate(0, 1, 0)}

	c, err := f.campaign.Create(ctx, charity, valid)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.CampaignPending, c.Status)
	assert.Equal(t, "ch-1", c.CharityID)
	assert.Equal(t, "Clean Water", c.CharityName)
	assert.Zero(t, c.CurrentAmount)

	stored, err := f.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, stored.Title)

	today := valid
	today.EndDate = testNow
	_, err = f.campaign.Create(ctx, charity, today)
	assert.NoError(t, err, "a campaign may end today")

	tests := []struct {
		name   string
		mutate func(*CreateCampaignInput)
		target error
	}{
		{"BlankTitle", func(in *CreateCampaignInput) { in.Title = "  " }, pkgerrors.ErrValidation},
		{"GoalBelowMinimum", func(in *CreateCampaignInput) { in.GoalAmount = models.MinGoalAmount - 1 }, pkgerrors.ErrGoalBelowMinimum},
		{"MissingEndDate", func(in *CreateCampaignInput) { in.EndDate = time.Time{} }, pkgerrors.ErrValidation},
		{"EndDateInPast", func(in *CreateCampaignInput) { in.EndDate = testNow.AddDate(0, 0, -1) }, pkgerrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.campaign.Create(ctx, charity, in)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestCampaignService_Review(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := testNow.AddDate(0, 0, 7)
	f.seedCampaign(t, "c-1", models.CampaignPending, 1000, 0, end)
	f.seedCampaign(t, "c-2", models.CampaignPending, 1000, 0, end)

	c, err := f.campaign.Approve(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignApproved, c.Status)

	c, err = f.campaign.Reject(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignRejected, c.Status)

	_, err = f.campaign.Reject(ctx, "c-1")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidStatusTransition)
	_, err = f.campaign.Approve(ctx, "c-2")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidStatusTransition)
	_, err = f.campaign.Approve(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	public, err := f.campaign.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "c-1", public[0].ID)
	assert.True(t, public[0].State.IsActive)

	all, err := f.campaign.List(ctx, models.CampaignFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCampaignService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCampaign(t, "c-1", models.CampaignApproved, 1000, 300, testNow.AddDate(0, 0, 7))

	title := "Wells, phase two"
	forged := int64(999999)
	c, err := f.campaign.Update(ctx, charity, "c-1", models.CampaignPatch{Title: &title, CurrentAmount: &forged})
	require.NoError(t, err)
	assert.Equal(t, title, c.Title)
	assert.Equal(t, int64(300), c.CurrentAmount, "counters are not client editable")

	_, err = f.campaign.Update(ctx, charity, "c-1", models.CampaignPatch{CurrentAmount: &forged})
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyPatch)

	other := models.Actor{UID: "ch-2", Role: models.RoleCharity}
	_, err = f.campaign.Update(ctx, other, "c-1", models.CampaignPatch{Title: &title})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)

	desc := "Edited by staff"
	c, err = f.campaign.Update(ctx, admin, "c-1", models.CampaignPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, c.Description)

	blank := " "
	_, err = f.campaign.Update(ctx, charity, "c-1", models.CampaignPatch{Title: &blank})
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)
}

func TestCampaignService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, testNow.AddDate(0, 0, 7))
	_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 500})
	require.NoError(t, err)

	require.NoError(t, f.campaign.Delete(ctx, "c-1"))
	_, err = f.campaign.Get(ctx, "c-1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.ErrorIs(t, f.campaign.Delete(ctx, "c-1"), pkgerrors.ErrNotFound)

	kept, err := f.ledger.ByCampaign(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, kept, 1, "deleting a campaign keeps its donations")
}

func TestCampaignService_ApplyDonation(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsNonPositive", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 1000, 250, testNow.AddDate(0, 0, 7))
		for _, amount := range []int64{0, -1} {
			_, err := f.campaign.ApplyDonation(ctx, "c-1", amount)
			assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		}
		c, _ := f.campaigns.GetByID(ctx, "c-1")
		assert.Equal(t, int64(250), c.CurrentAmount)
		assert.Zero(t, c.DonorCount)
	})

	t.Run("IgnoresEligibility", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignRejected, 1000, 1000, testNow.AddDate(0, 0, -3))
		c, err := f.campaign.ApplyDonation(ctx, "c-1", 500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), c.CurrentAmount)
		assert.Zero(t, c.DonorCount)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		campaigns := repomocks.NewMockCampaignRepository()
		campaigns.On("IncrementProgress", mock.Anything, "c-1", int64(500)).Return(nil, errors.New("deadlock detected")).Once()
		svc := NewCampaignService(campaigns, ledger.New(memory.NewDonationRepository()), redis.Noop{}, Settings{})

		_, err := svc.ApplyDonation(ctx, "c-1", 500)
		assert.ErrorContains(t, err, "deadlock detected")
		campaigns.AssertExpectations(t)
	})
}

func TestCampaignService_Reconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCampaign(t, "c-1", models.CampaignApproved, 100000, 0, testNow.AddDate(0, 0, 7))
	for _, uid := range []string{"u-1", "u-2", "u-1"} {
		_, err := f.donation.Donate(ctx, donor(uid), DonateRequest{CampaignID: "c-1", Amount: 1000})
		require.NoError(t, err)
	}

	c, err := f.campaign.Reconcile(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), c.CurrentAmount)
	assert.Equal(t, 2, c.DonorCount)

	drifted := int64(42)
	zero := 0
	_, err = f.campaigns.Update(ctx, "c-1", models.CampaignPatch{CurrentAmount: &drifted, DonorCount: &zero})
	require.NoError(t, err)

	c, err = f.campaign.Reconcile(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), c.CurrentAmount)
	assert.Equal(t, 2, c.DonorCount)

	_, err = f.campaign.Reconcile(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestCampaignService_ReconcileFoldsInStore(t *testing.T) {
	ctx := context.Background()
	campaigns := repomocks.NewMockCampaignRepository()
	campaigns.On("GetByID", mock.Anything, "c-1").Return(&models.Campaign{ID: "c-1", CurrentAmount: 2500, DonorCount: 2}, nil).Once()
	campaigns.On("Recount", mock.Anything, "c-1").Return(&models.Campaign{ID: "c-1", CurrentAmount: 3000, DonorCount: 2}, nil).Once()
	svc := NewCampaignService(campaigns, ledger.New(memory.NewDonationRepository()), redis.Noop{}, Settings{})

	c, err := svc.Reconcile(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), c.CurrentAmount)
	campaigns.AssertExpectations(t)
	campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	campaigns.On("GetByID", mock.Anything, "c-2").Return(&models.Campaign{ID: "c-2"}, nil).Once()
	campaigns.On("Recount", mock.Anything, "c-2").Return(nil, errors.New("serialization failure")).Once()
	_, err = svc.Reconcile(ctx, "c-2")
	assert.ErrorContains(t, err, "serialization failure")
}

func TestCampaignService_GetCache(t *testing.T) {
	ctx := context.Background()
	campaign := models.Campaign{ID: "c-1", Title: "Cached", Status: models.CampaignApproved, GoalAmount: 1000, CurrentAmount: 400, EndDate: testNow.AddDate(0, 0, 2)}
	encoded, err := json.Marshal(campaign)
	require.NoError(t, err)

	t.Run("Hit", func(t *testing.T) {
		campaigns := repomocks.NewMockCampaignRepository()
		redisClient := redismocks.NewMockRedisClient()
		redisClient.On("Get", mock.Anything, "campaign:c-1").Return(string(encoded), nil).Once()
		svc := NewCampaignService(campaigns, ledger.New(memory.NewDonationRepository()), redisClient, Settings{Now: func() time.Time { return testNow }})

		view, err := svc.Get(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, "Cached", view.Title)
		assert.Equal(t, 0.4, view.State.PercentFunded)
		campaigns.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		redisClient.AssertExpectations(t)
	})

	t.Run("MissFillsCache", func(t *testing.T) {
		campaigns := repomocks.NewMockCampaignRepository()
		campaigns.On("GetByID", mock.Anything, "c-1").Return(&campaign, nil).Once()
		redisClient := redismocks.NewMockRedisClient()
		redisClient.On("Get", mock.Anything, "campaign:c-1").Return("", redis.ErrKeyNotFound).Once()
		redisClient.On("Set", mock.Anything, "campaign:c-1", string(encoded), mock.Anything).Return(nil).Once()
		svc := NewCampaignService(campaigns, ledger.New(memory.NewDonationRepository()), redisClient, Settings{})

		view, err := svc.Get(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(400), view.CurrentAmount)
		campaigns.AssertExpectations(t)
		redisClient.AssertExpectations(t)
	})

	t.Run("RedisDownFallsBack", func(t *testing.T) {
		campaigns := repomocks.NewMockCampaignRepository()
		campaigns.On("GetByID", mock.Anything, "c-1").Return(&campaign, nil).Once()
		redisClient := redismocks.NewMockRedisClient()
		redisClient.On("Get", mock.Anything, "campaign:c-1").Return("", errors.New("dial tcp: connection refused")).Once()
		redisClient.On("Set", mock.Anything, "campaign:c-1", mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused")).Once()
		svc := NewCampaignService(campaigns, ledger.New(memory.NewDonationRepository()), redisClient, Settings{})

		view, err := svc.Get(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, "c-1", view.ID)
	})
}
