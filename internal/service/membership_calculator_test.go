package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

type stubProfiles struct {
	profiles map[string]models.Profile
	err      error
	gets     int
}

func (s *stubProfiles) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *stubProfiles) ListByUserIDs(_ context.Context, userIDs []string) (map[string]models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]models.Profile)
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type stubRoles struct {
	assignments []models.RoleAssignment
}

func (s *stubRoles) HasActive(_ context.Context, userID string, at time.Time) (bool, error) {
	for _, a := range s.assignments {
		if a.UserID == userID && a.ActiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRoles) ListActiveUserIDs(_ context.Context, at time.Time) ([]string, error) {
	set := make(models.UserSet)
	for _, a := range s.assignments {
		if a.ActiveAt(at) {
			set.Add(a.UserID)
		}
	}
	return set.Sorted(), nil
}

func (s *stubRoles) ListActiveUserIDsByRole(_ context.Context, role string, at time.Time) ([]string, error) {
	set := make(models.UserSet)
	for _, a := range s.assignments {
		if a.RoleName == role && a.ActiveAt(at) {
			set.Add(a.UserID)
		}
	}
	return set.Sorted(), nil
}

func (s *stubRoles) ListActiveByUsers(_ context.Context, userIDs []string, at time.Time) (map[string][]models.RoleAssignment, error) {
	wanted := make(models.UserSet)
	wanted.Add(userIDs...)
	out := make(map[string][]models.RoleAssignment)
	for _, a := range s.assignments {
		if wanted.Has(a.UserID) && a.ActiveAt(at) {
			out[a.UserID] = append(out[a.UserID], a)
		}
	}
	return out, nil
}

type stubConsents struct {
	byUser     map[string]models.VersionSet
	batchCalls int
}

func (s *stubConsents) ConsentedVersionIDs(_ context.Context, userID string) (models.VersionSet, error) {
	set := models.VersionSet{}
	for id := range s.byUser[userID] {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *stubConsents) ConsentedVersionIDsByUsers(_ context.Context, userIDs []string) (map[string]models.VersionSet, error) {
	s.batchCalls++
	out := make(map[string]models.VersionSet)
	for _, id := range userIDs {
		if set, ok := s.byUser[id]; ok && len(set) > 0 {
			out[id] = set
		}
	}
	return out, nil
}

func (s *stubConsents) consent(userID string, versionIDs ...string) {
	if s.byUser == nil {
		s.byUser = make(map[string]models.VersionSet)
	}
	set, ok := s.byUser[userID]
	if !ok {
		set = models.VersionSet{}
		s.byUser[userID] = set
	}
	for _, id := range versionIDs {
		set[id] = struct{}{}
	}
}

type stubRequired struct {
	byScope map[string][]models.RequiredVersion
	err     error
	calls   int
}

func (s *stubRequired) ListRequired(_ context.Context, scopeID string, at time.Time) ([]models.RequiredVersion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.RequiredVersion, 0)
	for _, v := range s.byScope[scopeID] {
		if !v.EffectiveFrom.After(at) {
			out = append(out, v)
		}
	}
	return out, nil
}

func requiredVersion(id, scope string, effective time.Time, graceDays int) models.RequiredVersion {
	return models.RequiredVersion{
		DocumentVersion: models.DocumentVersion{ID: id, LegalDocumentID: "doc-" + id, VersionNumber: "v1.0", EffectiveFrom: effective},
		DocumentName:    "Document " + id,
		ScopeID:         scope,
		GracePeriodDays: graceDays,
	}
}

type calculatorFixture struct {
	profiles *stubProfiles
	roles    *stubRoles
	consents *stubConsents
	required *stubRequired
	now      time.Time
}

func newCalculatorFixture(now time.Time) *calculatorFixture {
	return &calculatorFixture{
		profiles: &stubProfiles{profiles: map[string]models.Profile{}},
		roles:    &stubRoles{},
		consents: &stubConsents{},
		required: &stubRequired{byScope: map[string][]models.RequiredVersion{}},
		now:      now,
	}
}

func (f *calculatorFixture) member(userID string, suspended bool) {
	f.profiles.profiles[userID] = models.Profile{UserID: userID, IsSuspended: suspended}
	f.roles.assignments = append(f.roles.assignments, models.RoleAssignment{
		ID: "ra-" + userID, UserID: userID, RoleName: "Member", ValidFrom: f.now.AddDate(-1, 0, 0),
	})
}

func (f *calculatorFixture) calculator() *MembershipCalculator {
	return NewMembershipCalculator(f.profiles, f.roles, f.consents, f.required, nil,
		WithCalculatorClock(func() time.Time { return f.now }))
}

func TestComputeStatusWithoutProfileIsNone(t *testing.T) {
	f := newCalculatorFixture(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	status, err := f.calculator().ComputeStatus(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusNone, status)
	assert.Zero(t, f.required.calls)
}

func TestComputeStatusSuspendedShortCircuits(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.member("user-1", true)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -30), 7)}
	f.consents.consent("user-1", "v1")

	status, err := f.calculator().ComputeStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusSuspended, status)
	assert.Zero(t, f.required.calls)
}

func TestComputeStatusWithoutActiveRoleIsNoneRegardlessOfConsent(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.profiles.profiles["user-1"] = models.Profile{UserID: "user-1"}
	ended := now.Add(-time.Hour)
	f.roles.assignments = []models.RoleAssignment{{UserID: "user-1", RoleName: "Member", ValidFrom: now.AddDate(-1, 0, 0), ValidTo: &ended}}
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -30), 7)}

	status, err := f.calculator().ComputeStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusNone, status)

	f.consents.consent("user-1", "v1")
	status, err = f.calculator().ComputeStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusNone, status)
}

func TestComputeStatusGraceBoundaryIsInclusive(t *testing.T) {
	effective := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	f := newCalculatorFixture(effective)
	f.member("user-1", false)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, effective, 7)}
	calc := f.calculator()

	cases := []struct {
		name string
		at   time.Time
		want models.MembershipStatus
	}{
		{"six days", effective.AddDate(0, 0, 6), models.MembershipStatusActive},
		{"one second before deadline", effective.AddDate(0, 0, 7).Add(-time.Second), models.MembershipStatusActive},
		{"exactly seven days", effective.AddDate(0, 0, 7), models.MembershipStatusInactive},
		{"thirty days", effective.AddDate(0, 0, 30), models.MembershipStatusInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.now = tc.at
			status, err := calc.ComputeStatus(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestComputeStatusActiveAfterConsenting(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.member("user-1", false)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{
		requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -30), 7),
		requiredVersion("v2", models.ScopeEveryone, now.AddDate(0, 0, -1), 7),
	}
	f.consents.consent("user-1", "v1")
	calc := f.calculator()

	status, err := calc.ComputeStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusActive, status)

	all, err := calc.HasAllRequiredConsents(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, all)

	missing, err := calc.GetMissingConsentVersions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, missing)

	expired, err := calc.HasAnyExpiredConsents(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestComputeStatusForScopeOnlyConsidersThatScope(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	team := "11111111-2222-3333-4444-555555555555"
	f := newCalculatorFixture(now)
	f.member("user-1", false)
	f.required.byScope[team] = []models.RequiredVersion{requiredVersion("team-v1", team, now.AddDate(0, 0, -10), 7)}
	calc := f.calculator()

	status, err := calc.ComputeStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusActive, status)

	status, err = calc.ComputeStatusForScope(context.Background(), "user-1", team)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusInactive, status)
}

func TestNoRequiredVersionsMeansEveryoneHasAllConsents(t *testing.T) {
	f := newCalculatorFixture(time.Now())
	calc := f.calculator()

	all, err := calc.HasAllRequiredConsents(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, all)

	users, err := calc.GetUsersWithAllRequiredConsents(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, users.Sorted())
	assert.Zero(t, f.consents.batchCalls)
}

func TestBatchOperationsWithEmptyInput(t *testing.T) {
	f := newCalculatorFixture(time.Now())
	calc := f.calculator()

	all, err := calc.GetUsersWithAllRequiredConsents(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	expired, err := calc.GetUsersWithAnyExpiredConsents(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, expired)

	statuses, err := calc.ComputeStatuses(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)
	assert.Zero(t, f.required.calls)
}

func TestUsersWithoutAnyConsentCountAsExpired(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{
		requiredVersion("old", models.ScopeEveryone, now.AddDate(0, 0, -30), 7),
		requiredVersion("fresh", models.ScopeEveryone, now.AddDate(0, 0, -1), 7),
	}
	f.consents.consent("consented", "old")
	f.consents.consent("fresh-only", "fresh")

	expired, err := f.calculator().GetUsersWithAnyExpiredConsents(context.Background(), []string{"consented", "fresh-only", "nobody"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-only", "nobody"}, expired.Sorted())
	assert.Equal(t, 1, f.consents.batchCalls)
}

func TestNoExpiredVersionsSkipsConsentLookup(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("fresh", models.ScopeEveryone, now.AddDate(0, 0, -1), 7)}

	expired, err := f.calculator().GetUsersWithAnyExpiredConsents(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, expired)
	assert.Zero(t, f.consents.batchCalls)
}

func TestBatchAndSerialEvaluationAgree(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{
		requiredVersion("v-old", models.ScopeEveryone, now.AddDate(0, 0, -20), 14),
		requiredVersion("v-new", models.ScopeEveryone, now.AddDate(0, 0, -2), 7),
	}
	f.member("complete", false)
	f.consents.consent("complete", "v-old", "v-new")
	f.member("within-grace", false)
	f.consents.consent("within-grace", "v-old")
	f.member("lapsed", false)
	f.consents.consent("lapsed", "v-new")
	f.member("suspended", true)
	f.member("never-consented", false)
	f.profiles.profiles["no-role"] = models.Profile{UserID: "no-role"}
	users := []string{"complete", "within-grace", "lapsed", "suspended", "never-consented", "no-role", "ghost"}

	calc := f.calculator()
	statuses, err := calc.ComputeStatuses(context.Background(), users)
	require.NoError(t, err)
	allSet, err := calc.GetUsersWithAllRequiredConsents(context.Background(), users)
	require.NoError(t, err)
	expiredSet, err := calc.GetUsersWithAnyExpiredConsents(context.Background(), users)
	require.NoError(t, err)

	for _, userID := range users {
		serial, err := calc.ComputeStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, serial, statuses[userID], userID)

		hasAll, err := calc.HasAllRequiredConsents(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, hasAll, allSet.Has(userID), userID)

		hasExpired, err := calc.HasAnyExpiredConsents(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, hasExpired, expiredSet.Has(userID), userID)
	}
	assert.Equal(t, models.MembershipStatusActive, statuses["complete"])
	assert.Equal(t, models.MembershipStatusActive, statuses["within-grace"])
	assert.Equal(t, models.MembershipStatusInactive, statuses["lapsed"])
	assert.Equal(t, models.MembershipStatusSuspended, statuses["suspended"])
	assert.Equal(t, models.MembershipStatusInactive, statuses["never-consented"])
	assert.Equal(t, models.MembershipStatusNone, statuses["no-role"])
	assert.Equal(t, models.MembershipStatusNone, statuses["ghost"])
}

func TestGetUsersRequiringStatusUpdate(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -10), 7)}
	f.member("b-lapsed", false)
	f.member("a-lapsed", false)
	f.member("ok", false)
	f.consents.consent("ok", "v1")
	f.consents.consent("retired", "x")

	users, err := f.calculator().GetUsersRequiringStatusUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-lapsed", "b-lapsed"}, users)
}

func TestEvaluateReportsMissingVersions(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.member("user-1", false)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -10), 7)}

	report, err := f.calculator().Evaluate(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ScopeEveryone, report.ScopeID)
	assert.Equal(t, models.MembershipStatusInactive, report.Status)
	assert.Equal(t, []string{"v1"}, report.MissingVersions)
}

func TestCalculatorPropagatesPersistenceErrors(t *testing.T) {
	f := newCalculatorFixture(time.Now())
	f.member("user-1", false)
	f.required.err = errors.New("connection reset")

	_, err := f.calculator().ComputeStatus(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.ErrorContains(t, err, "connection reset")

	f.required.err = nil
	f.profiles.err = errors.New("timeout")
	_, err = f.calculator().ComputeStatus(context.Background(), "user-1")
	assert.ErrorContains(t, err, "timeout")
}

func TestBlankUserIDIsRejectedOnSerialAndBatchPaths(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newCalculatorFixture(now)
	f.required.byScope[models.ScopeEveryone] = []models.RequiredVersion{requiredVersion("v1", models.ScopeEveryone, now.AddDate(0, 0, -10), 7)}
	f.member("user-1", false)
	calc := f.calculator()
	ctx := context.Background()

	_, err := calc.HasAnyExpiredConsents(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = calc.HasAllRequiredConsents(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = calc.ComputeStatus(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = calc.GetMissingConsentVersions(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = calc.HasActiveRoles(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = calc.Evaluate(ctx, "", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	users := []string{"", "user-1"}
	expired, err := calc.GetUsersWithAnyExpiredConsents(ctx, users)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, expired.Sorted())

	lapsed, err := calc.GetExpiredConsentVersions(ctx, users)
	require.NoError(t, err)
	assert.NotContains(t, lapsed, "")

	statuses, err := calc.ComputeStatuses(ctx, users)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.MembershipStatus{"user-1": models.MembershipStatusInactive}, statuses)

	f.required.byScope[models.ScopeEveryone] = nil
	all, err := calc.GetUsersWithAllRequiredConsents(ctx, users)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, all.Sorted())

	onlyBlank, err := calc.ComputeStatuses(ctx, []string{""})
	require.NoError(t, err)
	assert.Empty(t, onlyBlank)
}
