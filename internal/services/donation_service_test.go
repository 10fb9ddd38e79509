package service

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkamocks "github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/kafka/mocks"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	redismocks "github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis/mocks"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository/memory"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingAggregates struct {
	err error
}

func (f failingAggregates) ApplyDonation(context.Context, string, int64) (*models.Campaign, error) {
	return nil, f.err
}

func (f failingAggregates) Reconcile(context.Context, string) (*models.Campaign, error) {
	return nil, f.err
}

// interleavedLock runs before once, ahead of granting the first lock, as if
// another request completed between this one's ledger lookup and SETNX.
type interleavedLock struct {
	redis.Noop
	before func()
}

func (l *interleavedLock) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	if run := l.before; run != nil {
		l.before = nil
		run()
	}
	return true, nil
}

// staleLookups misses the first few transaction lookups, so only the
// store's uniqueness check stands between a retry and a second entry.
type staleLookups struct {
	*memory.DonationRepository
	misses int
}

func (s *staleLookups) GetByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error) {
	if s.misses > 0 {
		s.misses--
		return nil, pkgerrors.NotFound("donation", transactionID)
	}
	return s.DonationRepository.GetByTransactionID(ctx, transactionID)
}

func TestDonationService_Donate(t *testing.T) {
	ctx := context.Background()
	tomorrow := testNow.AddDate(0, 0, 1)

	t.Run("FundsCampaignPastGoal", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 1000, 0, tomorrow)

		before, err := f.campaign.Get(ctx, "c-1")
		require.NoError(t, err)
		assert.True(t, before.State.IsActive)
		assert.Equal(t, 0.0, before.State.PercentFunded)

		d, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 1200, PaymentMethod: "card"})
		require.NoError(t, err)
		assert.Equal(t, "d-1", d.ID)
		assert.Equal(t, models.DonationCompleted, d.Status)
		assert.Equal(t, testNow, d.CreatedAt)

		after, err := f.campaign.Get(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1200), after.CurrentAmount)
		assert.Equal(t, 1, after.DonorCount)
		assert.Equal(t, 1.2, after.State.PercentFunded)
		assert.True(t, after.State.IsCompleted)
		assert.False(t, after.State.IsActive)

		f.producer.AssertCalled(t, "Send", mock.Anything, "donations", "c-1", mock.Anything)
		f.producer.AssertNotCalled(t, "Send", mock.Anything, "campaign-reconcile", mock.Anything, mock.Anything)

		_, err = f.donation.Donate(ctx, donor("u-2"), DonateRequest{CampaignID: "c-1", Amount: 100})
		assert.ErrorIs(t, err, pkgerrors.ErrCampaignNotActive)
	})

	t.Run("DonorCountTracksUniqueDonors", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 100000, 0, tomorrow)

		for _, uid := range []string{"u-1", "u-1", "u-2"} {
			_, err := f.donation.Donate(ctx, donor(uid), DonateRequest{CampaignID: "c-1", Amount: 500})
			require.NoError(t, err)
		}
		c, err := f.campaigns.GetByID(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), c.CurrentAmount)
		assert.Equal(t, 2, c.DonorCount)

		unique, err := f.ledger.UniqueDonorCount(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, c.DonorCount, unique)
	})

	t.Run("LedgerMatchesAggregate", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 100000, 0, tomorrow)
		for i, amount := range []int64{100, 250, 999, 5000} {
			_, err := f.donation.Donate(ctx, donor([]string{"a", "b", "c", "a"}[i]), DonateRequest{CampaignID: "c-1", Amount: amount})
			require.NoError(t, err)
		}
		c, err := f.campaigns.GetByID(ctx, "c-1")
		require.NoError(t, err)
		sum, err := f.ledger.SumByCampaign(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, sum, c.CurrentAmount)
		assert.Equal(t, int64(6349), sum)
	})

	t.Run("ValidationLeavesEverythingUntouched", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 1000, 0, tomorrow)

		_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 0})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)

		_, err = f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: -5})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)

		_, err = f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 99})
		assert.ErrorIs(t, err, pkgerrors.ErrAmountBelowMinimum)

		_, err = f.donation.Donate(ctx, donor("u-1"), DonateRequest{Amount: 500})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)

		_, err = f.donation.Donate(ctx, models.Actor{}, DonateRequest{CampaignID: "c-1", Amount: 500})
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)

		all, err := f.ledger.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		c, _ := f.campaigns.GetByID(ctx, "c-1")
		assert.Equal(t, int64(0), c.CurrentAmount)
		f.producer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("IneligibleCampaigns", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "pending", models.CampaignPending, 1000, 0, tomorrow)
		f.seedCampaign(t, "rejected", models.CampaignRejected, 1000, 0, tomorrow)
		f.seedCampaign(t, "expired", models.CampaignApproved, 1000, 0, testNow.AddDate(0, 0, -1))
		f.seedCampaign(t, "funded", models.CampaignApproved, 1000, 1000, tomorrow)

		for _, id := range []string{"pending", "rejected", "expired", "funded"} {
			_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: id, Amount: 500})
			assert.ErrorIs(t, err, pkgerrors.ErrCampaignNotActive, id)
		}
		_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "missing", Amount: 500})
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

		all, _ := f.ledger.All(ctx)
		assert.Empty(t, all)
	})

	t.Run("EndsTodayStillAccepts", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 1000, 0, testNow.Add(-9*time.Hour))
		_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 500})
		assert.NoError(t, err)
	})
}

func TestDonationService_PartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, testNow.AddDate(0, 0, 5))

	cause := errors.New("connection reset by peer")
	svc := NewDonationService(f.campaigns, f.ledger, failingAggregates{err: cause}, f.donation.redisClient, f.producer, f.settings)

	d, err := svc.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 700, TransactionID: "tx-1"})
	require.Error(t, err)
	require.NotNil(t, d, "the receipt must survive an aggregate failure")
	assert.ErrorIs(t, err, pkgerrors.ErrPartialFailure)
	assert.ErrorIs(t, err, cause)

	var pf *pkgerrors.PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "c-1", pf.CampaignID)
	assert.Equal(t, d.ID, pf.DonationID)
	assert.Equal(t, int64(700), pf.Amount)

	recorded, err := f.ledger.ByCampaign(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, recorded, 1)

	stale, _ := f.campaigns.GetByID(ctx, "c-1")
	assert.Equal(t, int64(0), stale.CurrentAmount)
	f.producer.AssertCalled(t, "Send", mock.Anything, "campaign-reconcile", "c-1", mock.Anything)

	repaired, err := f.campaign.Reconcile(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), repaired.CurrentAmount)
	assert.Equal(t, 1, repaired.DonorCount)

	// A blind retry with the same key must not double-record.
	again, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 700, TransactionID: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID)
	recorded, _ = f.ledger.ByCampaign(ctx, "c-1")
	assert.Len(t, recorded, 1)
}

func TestDonationService_Idempotency(t *testing.T) {
	ctx := context.Background()
	tomorrow := testNow.AddDate(0, 0, 1)

	t.Run("ReplayReturnsOriginal", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		req := DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-9"}

		first, err := f.donation.Donate(ctx, donor("u-1"), req)
		require.NoError(t, err)
		second, err := f.donation.Donate(ctx, donor("u-1"), req)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		c, _ := f.campaigns.GetByID(ctx, "c-1")
		assert.Equal(t, int64(400), c.CurrentAmount)
	})

	t.Run("KeyReuseConflicts", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-9"})
		require.NoError(t, err)

		_, err = f.donation.Donate(ctx, donor("u-2"), DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-9"})
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
		_, err = f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 500, TransactionID: "tx-9"})
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
	})

	t.Run("InFlightLock", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		redisClient := redismocks.NewMockRedisClient()
		redisClient.On("SetNX", mock.Anything, "donation:tx:tx-1", "u-1", f.settings.withDefaults().IdempotencyTTL).Return(false, nil).Once()
		svc := NewDonationService(f.campaigns, f.ledger, f.campaign, redisClient, f.producer, f.settings)

		_, err := svc.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-1"})
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
		all, _ := f.ledger.All(ctx)
		assert.Empty(t, all)
		redisClient.AssertExpectations(t)
	})

	t.Run("RetryFinishesBeforeLock", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		req := DonateRequest{CampaignID: "c-1", Amount: 500, TransactionID: "tx-1"}

		var inner *models.Donation
		lock := &interleavedLock{before: func() {
			var err error
			inner, err = f.donation.Donate(ctx, donor("u-1"), req)
			require.NoError(t, err)
		}}
		svc := NewDonationService(f.campaigns, f.ledger, f.campaign, lock, f.producer, f.settings)

		outer, err := svc.Donate(ctx, donor("u-1"), req)
		require.NoError(t, err)
		require.NotNil(t, inner)
		assert.Equal(t, inner.ID, outer.ID)

		recorded, err := f.ledger.ByCampaign(ctx, "c-1")
		require.NoError(t, err)
		assert.Len(t, recorded, 1)
		c, _ := f.campaigns.GetByID(ctx, "c-1")
		assert.Equal(t, int64(500), c.CurrentAmount)
		assert.Equal(t, 1, c.DonorCount)
	})

	t.Run("StoreRejectsDuplicateKey", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		req := DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-7"}
		first, err := f.donation.Donate(ctx, donor("u-1"), req)
		require.NoError(t, err)

		stale := ledger.New(&staleLookups{DonationRepository: f.store, misses: 2}, ledger.WithClock(f.settings.Now))
		svc := NewDonationService(f.campaigns, stale, f.campaign, redis.Noop{}, f.producer, f.settings)

		second, err := svc.Donate(ctx, donor("u-1"), req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		recorded, _ := f.ledger.ByCampaign(ctx, "c-1")
		assert.Len(t, recorded, 1)
		c, _ := f.campaigns.GetByID(ctx, "c-1")
		assert.Equal(t, int64(400), c.CurrentAmount)

		_, err = svc.Donate(ctx, donor("u-2"), DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-7"})
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
	})

	t.Run("LockReleased", func(t *testing.T) {
		f := newFixture(t)
		f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, tomorrow)
		redisClient := redismocks.NewMockRedisClient()
		redisClient.On("SetNX", mock.Anything, "donation:tx:tx-1", "u-1", mock.Anything).Return(true, nil).Once()
		redisClient.On("Del", mock.Anything, []string{"donation:tx:tx-1"}).Return(nil).Once()
		producer := kafkamocks.NewMockKafkaProducer()
		producer.On("Send", mock.Anything, "donations", "c-1", mock.Anything).Return(errors.New("broker down")).Once()
		svc := NewDonationService(f.campaigns, f.ledger, f.campaign, redisClient, producer, f.settings)

		d, err := svc.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 400, TransactionID: "tx-1"})
		require.NoError(t, err, "event publishing is best effort")
		assert.Equal(t, "tx-1", d.TransactionID)
		redisClient.AssertExpectations(t)
		producer.AssertExpectations(t)
	})
}

func TestDonationService_Listing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCampaign(t, "c-1", models.CampaignApproved, 10000, 0, testNow.AddDate(0, 0, 3))

	_, err := f.donation.Donate(ctx, donor("u-1"), DonateRequest{CampaignID: "c-1", Amount: 100, Anonymous: true})
	require.NoError(t, err)
	_, err = f.donation.Donate(ctx, donor("u-2"), DonateRequest{CampaignID: "c-1", Amount: 200})
	require.NoError(t, err)

	public, err := f.donation.ListByCampaign(ctx, "c-1", models.Actor{})
	require.NoError(t, err)
	require.Len(t, public, 2)
	byID := map[string]models.Donation{public[0].ID: public[0], public[1].ID: public[1]}
	assert.Empty(t, byID["d-1"].DonorID)
	assert.Empty(t, byID["d-1"].DonorName)
	assert.Equal(t, int64(100), byID["d-1"].Amount)
	assert.Equal(t, "u-2", byID["d-2"].DonorID)

	own, err := f.donation.ListByCampaign(ctx, "c-1", donor("u-1"))
	require.NoError(t, err)
	for _, d := range own {
		assert.NotEmpty(t, d.DonorID)
	}

	_, err = f.donation.ListByCampaign(ctx, "missing", models.Actor{})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	f.seedCampaign(t, "c-2", models.CampaignRejected, 10000, 0, testNow.AddDate(0, 0, 3))
	for _, viewer := range []models.Actor{{}, donor("u-1")} {
		_, err = f.donation.ListByCampaign(ctx, "c-2", viewer)
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound, viewer.UID)
	}
	for _, viewer := range []models.Actor{charity, admin} {
		hidden, err := f.donation.ListByCampaign(ctx, "c-2", viewer)
		require.NoError(t, err, viewer.UID)
		assert.Empty(t, hidden)
	}

	mine, err := f.donation.ListByDonor(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u-1", mine[0].DonorID)
}
