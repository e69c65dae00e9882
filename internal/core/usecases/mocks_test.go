package usecases_test

import (
	"context"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// --- Mock TripRepository ---

type mockTripRepo struct {
	createFn        func(ctx context.Context, trip *domain.Trip) error
	getByIDFn       func(ctx context.Context, id int64) (*domain.Trip, error)
	listOnDateFn    func(ctx context.Context, date time.Time) ([]domain.Trip, error)
	listConfirmedFn func(ctx context.Context, from, to time.Time) ([]domain.Trip, error)
	assignFn        func(ctx context.Context, tripID, vehicleID int64, version int) error
	setStateFn      func(ctx context.Context, tripID int64, state domain.TripState) error
}

func (m *mockTripRepo) Create(ctx context.Context, trip *domain.Trip) error {
	if m.createFn != nil {
		return m.createFn(ctx, trip)
	}
	return nil
}

func (m *mockTripRepo) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTripRepo) ListOnDate(ctx context.Context, date time.Time) ([]domain.Trip, error) {
	if m.listOnDateFn != nil {
		return m.listOnDateFn(ctx, date)
	}
	return nil, nil
}

func (m *mockTripRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Trip, error) {
	if m.listConfirmedFn != nil {
		return m.listConfirmedFn(ctx, from, to)
	}
	return nil, nil
}

func (m *mockTripRepo) AssignVehicle(ctx context.Context, tripID, vehicleID int64, version int) error {
	if m.assignFn != nil {
		return m.assignFn(ctx, tripID, vehicleID, version)
	}
	return nil
}

func (m *mockTripRepo) SetState(ctx context.Context, tripID int64, state domain.TripState) error {
	if m.setStateFn != nil {
		return m.setStateFn(ctx, tripID, state)
	}
	return nil
}

// --- Mock FleetRepository ---

type mockFleetRepo struct {
	listFn    func(ctx context.Context) ([]domain.Vehicle, error)
	getByIDFn func(ctx context.Context, id int64) (*domain.Vehicle, error)
}

func (m *mockFleetRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockFleetRepo) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

// --- Mock FareRuleRepository ---

type mockFareRuleRepo struct {
	listActiveFn   func(ctx context.Context) ([]domain.FareRule, error)
	listHolidaysFn func(ctx context.Context) ([]domain.HolidayEntry, error)
}

func (m *mockFareRuleRepo) ListActive(ctx context.Context) ([]domain.FareRule, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockFareRuleRepo) ListHolidays(ctx context.Context) ([]domain.HolidayEntry, error) {
	if m.listHolidaysFn != nil {
		return m.listHolidaysFn(ctx)
	}
	return nil, nil
}

// --- Mock SettingsRepository ---

type mockSettingsRepo struct {
	getBufferPolicyFn func(ctx context.Context) (*domain.BufferPolicy, error)
}

func (m *mockSettingsRepo) GetBufferPolicy(ctx context.Context) (*domain.BufferPolicy, error) {
	if m.getBufferPolicyFn != nil {
		return m.getBufferPolicyFn(ctx)
	}
	return nil, nil
}

// --- Mock DestinationRepository ---

type mockDestinationRepo struct {
	getFn  func(ctx context.Context, name string) (*domain.DestinationInfo, error)
	listFn func(ctx context.Context) ([]domain.DestinationInfo, error)
}

func (m *mockDestinationRepo) Get(ctx context.Context, name string) (*domain.DestinationInfo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, name)
	}
	return nil, nil
}

func (m *mockDestinationRepo) List(ctx context.Context) ([]domain.DestinationInfo, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock OpportunityRepository ---

type mockOpportunityRepo struct {
	createFn        func(ctx context.Context, o *domain.Opportunity) error
	getByCodeFn     func(ctx context.Context, code string) (*domain.Opportunity, error)
	codeExistsFn    func(ctx context.Context, code string) (bool, error)
	existsForTripFn func(ctx context.Context, tripID int64, kind domain.OpportunityKind) (bool, error)
	listAvailableFn func(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error)
	listAllFn       func(ctx context.Context) ([]domain.Opportunity, error)
	setStateFn      func(ctx context.Context, code string, state domain.OpportunityState) error
	expireBeforeFn  func(ctx context.Context, now time.Time) (int, error)
	statsFn         func(ctx context.Context, since time.Time) (*domain.OpportunityStats, error)
}

func (m *mockOpportunityRepo) Create(ctx context.Context, o *domain.Opportunity) error {
	if m.createFn != nil {
		return m.createFn(ctx, o)
	}
	return nil
}

func (m *mockOpportunityRepo) GetByCode(ctx context.Context, code string) (*domain.Opportunity, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockOpportunityRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	if m.codeExistsFn != nil {
		return m.codeExistsFn(ctx, code)
	}
	return false, nil
}

func (m *mockOpportunityRepo) ExistsForTrip(ctx context.Context, tripID int64, kind domain.OpportunityKind) (bool, error) {
	if m.existsForTripFn != nil {
		return m.existsForTripFn(ctx, tripID, kind)
	}
	return false, nil
}

func (m *mockOpportunityRepo) ListAvailable(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error) {
	if m.listAvailableFn != nil {
		return m.listAvailableFn(ctx, filter, date)
	}
	return nil, nil
}

func (m *mockOpportunityRepo) ListAll(ctx context.Context) ([]domain.Opportunity, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockOpportunityRepo) SetState(ctx context.Context, code string, state domain.OpportunityState) error {
	if m.setStateFn != nil {
		return m.setStateFn(ctx, code, state)
	}
	return nil
}

func (m *mockOpportunityRepo) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	if m.expireBeforeFn != nil {
		return m.expireBeforeFn(ctx, now)
	}
	return 0, nil
}

func (m *mockOpportunityRepo) Stats(ctx context.Context, since time.Time) (*domain.OpportunityStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, since)
	}
	return &domain.OpportunityStats{}, nil
}

// --- Mock SubscriptionRepository ---

type mockSubscriptionRepo struct {
	upsertFn     func(ctx context.Context, sub *domain.OpportunitySubscription) error
	listActiveFn func(ctx context.Context) ([]domain.OpportunitySubscription, error)
}

func (m *mockSubscriptionRepo) Upsert(ctx context.Context, sub *domain.OpportunitySubscription) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionRepo) ListActive(ctx context.Context) ([]domain.OpportunitySubscription, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	tripConfirmedFn  func(ctx context.Context, trip *domain.Trip) error
	oppCreatedFn     func(ctx context.Context, o *domain.Opportunity) error
	oppExpiredFn     func(ctx context.Context, codes []string) error
	createdCodes     []string
	expiredBroadcast [][]string
}

func (m *mockPublisher) PublishTripConfirmed(ctx context.Context, trip *domain.Trip) error {
	if m.tripConfirmedFn != nil {
		return m.tripConfirmedFn(ctx, trip)
	}
	return nil
}

func (m *mockPublisher) PublishOpportunityCreated(ctx context.Context, o *domain.Opportunity) error {
	m.createdCodes = append(m.createdCodes, o.Code)
	if m.oppCreatedFn != nil {
		return m.oppCreatedFn(ctx, o)
	}
	return nil
}

func (m *mockPublisher) PublishOpportunityExpired(ctx context.Context, codes []string) error {
	m.expiredBroadcast = append(m.expiredBroadcast, codes)
	if m.oppExpiredFn != nil {
		return m.oppExpiredFn(ctx, codes)
	}
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock NotificationService ---

type mockNotifier struct {
	sent []string
}

func (m *mockNotifier) SendOpportunityAlert(ctx context.Context, email string, o *domain.Opportunity) error {
	m.sent = append(m.sent, email)
	return nil
}

// --- Shared fixtures ---

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tod(h, m int) domain.TimeOfDay {
	return domain.TimeOfDay(h*60 + m)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func int64Ptr(v int64) *int64 { return &v }
