package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

type profileReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	ListByUserIDs(ctx context.Context, userIDs []string) (map[string]models.Profile, error)
}

type roleReader interface {
	HasActive(ctx context.Context, userID string, at time.Time) (bool, error)
	ListActiveUserIDs(ctx context.Context, at time.Time) ([]string, error)
	ListActiveByUsers(ctx context.Context, userIDs []string, at time.Time) (map[string][]models.RoleAssignment, error)
}

type consentReader interface {
	ConsentedVersionIDs(ctx context.Context, userID string) (models.VersionSet, error)
	ConsentedVersionIDsByUsers(ctx context.Context, userIDs []string) (map[string]models.VersionSet, error)
}

// MembershipCalculatorOption customises a MembershipCalculator.
type MembershipCalculatorOption func(*MembershipCalculator)

// WithCalculatorClock replaces the time source. The clock is read once per call.
func WithCalculatorClock(clock func() time.Time) MembershipCalculatorOption {
	return func(c *MembershipCalculator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithEveryoneScope overrides the scope used by the unscoped operations.
func WithEveryoneScope(scopeID string) MembershipCalculatorOption {
	return func(c *MembershipCalculator) {
		if scopeID != "" {
			c.everyone = scopeID
		}
	}
}

// MembershipCalculator derives membership status from profiles, role
// assignments and the consent ledger. It never writes and keeps no state
// between calls.
type MembershipCalculator struct {
	profiles profileReader
	roles    roleReader
	consents consentReader
	required RequiredVersionLister
	logger   *zap.Logger
	clock    func() time.Time
	everyone string
}

// NewMembershipCalculator constructs the calculator.
func NewMembershipCalculator(profiles profileReader, roles roleReader, consents consentReader, required RequiredVersionLister, logger *zap.Logger, opts ...MembershipCalculatorOption) *MembershipCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	calc := &MembershipCalculator{
		profiles: profiles,
		roles:    roles,
		consents: consents,
		required: required,
		logger:   logger,
		clock:    time.Now,
		everyone: models.ScopeEveryone,
	}
	for _, opt := range opts {
		opt(calc)
	}
	return calc
}

// EveryoneScope returns the scope evaluated by the unscoped operations.
func (c *MembershipCalculator) EveryoneScope() string {
	return c.everyone
}

// ComputeStatus evaluates a user against the everyone scope.
func (c *MembershipCalculator) ComputeStatus(ctx context.Context, userID string) (models.MembershipStatus, error) {
	return c.ComputeStatusForScope(ctx, userID, c.everyone)
}

// ComputeStatusForScope evaluates profile, suspension, active roles and
// lapsed consents in that order; the first match decides.
func (c *MembershipCalculator) ComputeStatusForScope(ctx context.Context, userID, scopeID string) (models.MembershipStatus, error) {
	return c.evaluate(ctx, userID, scopeID, c.clock())
}

// Evaluate returns the status of a user together with the required versions
// of scope they have not consented to.
func (c *MembershipCalculator) Evaluate(ctx context.Context, userID, scopeID string) (*models.MemberStatus, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	if scopeID == "" {
		scopeID = c.everyone
	}
	now := c.clock()
	status, err := c.evaluate(ctx, userID, scopeID, now)
	if err != nil {
		return nil, err
	}
	versions, consented, err := c.userConsentState(ctx, userID, scopeID, now)
	if err != nil {
		return nil, err
	}
	return &models.MemberStatus{
		UserID:          userID,
		ScopeID:         scopeID,
		Status:          status,
		MissingVersions: missingVersionIDs(versions, consented),
	}, nil
}

func (c *MembershipCalculator) evaluate(ctx context.Context, userID, scopeID string, now time.Time) (models.MembershipStatus, error) {
	if err := requireUserID(userID); err != nil {
		return "", err
	}
	profile, err := c.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.MembershipStatusNone, nil
		}
		return "", internalError(err, "failed to load profile")
	}
	if profile.IsSuspended {
		return models.MembershipStatusSuspended, nil
	}

	active, err := c.roles.HasActive(ctx, userID, now)
	if err != nil {
		return "", internalError(err, "failed to check active roles")
	}
	if !active {
		return models.MembershipStatusNone, nil
	}

	versions, consented, err := c.userConsentState(ctx, userID, scopeID, now)
	if err != nil {
		return "", err
	}
	if hasExpired(versions, consented, now) {
		return models.MembershipStatusInactive, nil
	}
	return models.MembershipStatusActive, nil
}

// HasAllRequiredConsents reports whether the user consented to every current
// required version of the everyone scope.
func (c *MembershipCalculator) HasAllRequiredConsents(ctx context.Context, userID string) (bool, error) {
	return c.HasAllRequiredConsentsForScope(ctx, userID, c.everyone)
}

// HasAllRequiredConsentsForScope is HasAllRequiredConsents for a specific scope.
func (c *MembershipCalculator) HasAllRequiredConsentsForScope(ctx context.Context, userID, scopeID string) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	now := c.clock()
	versions, err := c.listRequired(ctx, scopeID, now)
	if err != nil {
		return false, err
	}
	if len(versions) == 0 {
		return true, nil
	}
	consented, err := c.consentedBy(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(missingVersionIDs(versions, consented)) == 0, nil
}

// HasAnyExpiredConsents reports whether a required version of the everyone
// scope lacks consent past its grace period.
func (c *MembershipCalculator) HasAnyExpiredConsents(ctx context.Context, userID string) (bool, error) {
	return c.HasAnyExpiredConsentsForScope(ctx, userID, c.everyone)
}

// HasAnyExpiredConsentsForScope is HasAnyExpiredConsents for a specific scope.
func (c *MembershipCalculator) HasAnyExpiredConsentsForScope(ctx context.Context, userID, scopeID string) (bool, error) {
	now := c.clock()
	versions, consented, err := c.userConsentState(ctx, userID, scopeID, now)
	if err != nil {
		return false, err
	}
	return hasExpired(versions, consented, now), nil
}

// GetMissingConsentVersions lists required versions of the everyone scope the
// user has not consented to, whether or not their grace period has lapsed.
func (c *MembershipCalculator) GetMissingConsentVersions(ctx context.Context, userID string) ([]string, error) {
	now := c.clock()
	versions, consented, err := c.userConsentState(ctx, userID, c.everyone, now)
	if err != nil {
		return nil, err
	}
	return missingVersionIDs(versions, consented), nil
}

// HasActiveRoles reports whether the user holds any role right now.
func (c *MembershipCalculator) HasActiveRoles(ctx context.Context, userID string) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	active, err := c.roles.HasActive(ctx, userID, c.clock())
	if err != nil {
		return false, internalError(err, "failed to check active roles")
	}
	return active, nil
}

// GetUsersWithAllRequiredConsents returns the subset of userIDs holding every
// current required consent of the everyone scope.
func (c *MembershipCalculator) GetUsersWithAllRequiredConsents(ctx context.Context, userIDs []string) (models.UserSet, error) {
	return c.GetUsersWithAllRequiredConsentsForScope(ctx, userIDs, c.everyone)
}

// GetUsersWithAllRequiredConsentsForScope is the scoped batch form. It issues
// one required-versions query and one consent query.
func (c *MembershipCalculator) GetUsersWithAllRequiredConsentsForScope(ctx context.Context, userIDs []string, scopeID string) (models.UserSet, error) {
	result := make(models.UserSet)
	userIDs = presentIDs(userIDs)
	if len(userIDs) == 0 {
		return result, nil
	}
	versions, err := c.listRequired(ctx, scopeID, c.clock())
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		result.Add(userIDs...)
		return result, nil
	}
	consentsByUser, err := c.consentedByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, userID := range userIDs {
		if len(missingVersionIDs(versions, consentsByUser[userID])) == 0 {
			result.Add(userID)
		}
	}
	return result, nil
}

// GetUsersWithAnyExpiredConsents returns the subset of userIDs with a lapsed
// required consent in the everyone scope.
func (c *MembershipCalculator) GetUsersWithAnyExpiredConsents(ctx context.Context, userIDs []string) (models.UserSet, error) {
	return c.GetUsersWithAnyExpiredConsentsForScope(ctx, userIDs, c.everyone)
}

// GetUsersWithAnyExpiredConsentsForScope is the scoped batch form.
func (c *MembershipCalculator) GetUsersWithAnyExpiredConsentsForScope(ctx context.Context, userIDs []string, scopeID string) (models.UserSet, error) {
	lapsed, err := c.expiredVersionsByUser(ctx, userIDs, scopeID, c.clock())
	if err != nil {
		return nil, err
	}
	result := make(models.UserSet, len(lapsed))
	for userID := range lapsed {
		result.Add(userID)
	}
	return result, nil
}

// GetExpiredConsentVersions maps each user of userIDs with a lapsed consent in
// the everyone scope to the lapsed versions. Users in good standing are absent.
func (c *MembershipCalculator) GetExpiredConsentVersions(ctx context.Context, userIDs []string) (map[string][]models.RequiredVersion, error) {
	return c.expiredVersionsByUser(ctx, userIDs, c.everyone, c.clock())
}

// GetUsersRequiringStatusUpdate lists users holding an active role whose
// required consent in the everyone scope has lapsed, sorted by id.
func (c *MembershipCalculator) GetUsersRequiringStatusUpdate(ctx context.Context) ([]string, error) {
	now := c.clock()
	userIDs, err := c.roles.ListActiveUserIDs(ctx, now)
	if err != nil {
		return nil, internalError(err, "failed to list users with active roles")
	}
	lapsed, err := c.expiredVersionsByUser(ctx, userIDs, c.everyone, now)
	if err != nil {
		return nil, err
	}
	result := make(models.UserSet, len(lapsed))
	for userID := range lapsed {
		result.Add(userID)
	}
	return result.Sorted(), nil
}

// ComputeStatuses evaluates many users against the everyone scope with a
// fixed number of queries regardless of the number of users.
func (c *MembershipCalculator) ComputeStatuses(ctx context.Context, userIDs []string) (map[string]models.MembershipStatus, error) {
	return c.ComputeStatusesForScope(ctx, userIDs, c.everyone)
}

// ComputeStatusesForScope is ComputeStatuses for a specific scope. Its result
// agrees with ComputeStatusForScope for every user.
func (c *MembershipCalculator) ComputeStatusesForScope(ctx context.Context, userIDs []string, scopeID string) (map[string]models.MembershipStatus, error) {
	userIDs = presentIDs(userIDs)
	result := make(map[string]models.MembershipStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	now := c.clock()

	profiles, err := c.profiles.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, internalError(err, "failed to load profiles")
	}
	roles, err := c.roles.ListActiveByUsers(ctx, userIDs, now)
	if err != nil {
		return nil, internalError(err, "failed to load active roles")
	}
	lapsed, err := c.expiredVersionsByUser(ctx, userIDs, scopeID, now)
	if err != nil {
		return nil, err
	}

	for _, userID := range userIDs {
		profile, ok := profiles[userID]
		switch {
		case !ok:
			result[userID] = models.MembershipStatusNone
		case profile.IsSuspended:
			result[userID] = models.MembershipStatusSuspended
		case !anyActive(roles[userID], now):
			result[userID] = models.MembershipStatusNone
		case len(lapsed[userID]) > 0:
			result[userID] = models.MembershipStatusInactive
		default:
			result[userID] = models.MembershipStatusActive
		}
	}
	return result, nil
}

func (c *MembershipCalculator) expiredVersionsByUser(ctx context.Context, userIDs []string, scopeID string, now time.Time) (map[string][]models.RequiredVersion, error) {
	result := make(map[string][]models.RequiredVersion)
	userIDs = presentIDs(userIDs)
	if len(userIDs) == 0 {
		return result, nil
	}
	versions, err := c.listRequired(ctx, scopeID, now)
	if err != nil {
		return nil, err
	}
	expired := make([]models.RequiredVersion, 0, len(versions))
	for _, v := range versions {
		if v.ExpiredAt(now) {
			expired = append(expired, v)
		}
	}
	if len(expired) == 0 {
		return result, nil
	}

	consentsByUser, err := c.consentedByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, userID := range userIDs {
		// A user missing from the map has consented to nothing.
		consented := consentsByUser[userID]
		for _, v := range expired {
			if !consented.Has(v.ID) {
				result[userID] = append(result[userID], v)
			}
		}
	}
	return result, nil
}

func (c *MembershipCalculator) userConsentState(ctx context.Context, userID, scopeID string, now time.Time) ([]models.RequiredVersion, models.VersionSet, error) {
	if err := requireUserID(userID); err != nil {
		return nil, nil, err
	}
	versions, err := c.listRequired(ctx, scopeID, now)
	if err != nil {
		return nil, nil, err
	}
	if len(versions) == 0 {
		return versions, models.VersionSet{}, nil
	}
	consented, err := c.consentedBy(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return versions, consented, nil
}

func (c *MembershipCalculator) listRequired(ctx context.Context, scopeID string, now time.Time) ([]models.RequiredVersion, error) {
	versions, err := c.required.ListRequired(ctx, scopeID, now)
	if err != nil {
		return nil, internalError(err, "failed to list required versions")
	}
	return versions, nil
}

func (c *MembershipCalculator) consentedBy(ctx context.Context, userID string) (models.VersionSet, error) {
	consented, err := c.consents.ConsentedVersionIDs(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to load consents")
	}
	return consented, nil
}

func (c *MembershipCalculator) consentedByUsers(ctx context.Context, userIDs []string) (map[string]models.VersionSet, error) {
	consents, err := c.consents.ConsentedVersionIDsByUsers(ctx, userIDs)
	if err != nil {
		return nil, internalError(err, "failed to load consents")
	}
	return consents, nil
}

func missingVersionIDs(versions []models.RequiredVersion, consented models.VersionSet) []string {
	missing := make([]string, 0)
	for _, v := range versions {
		if !consented.Has(v.ID) {
			missing = append(missing, v.ID)
		}
	}
	return missing
}

func hasExpired(versions []models.RequiredVersion, consented models.VersionSet, now time.Time) bool {
	for _, v := range versions {
		if !consented.Has(v.ID) && v.ExpiredAt(now) {
			return true
		}
	}
	return false
}

func anyActive(assignments []models.RoleAssignment, now time.Time) bool {
	for _, a := range assignments {
		if a.ActiveAt(now) {
			return true
		}
	}
	return false
}

// requireUserID rejects the blank id on single-user paths.
func requireUserID(userID string) error {
	if userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	return nil
}

// presentIDs drops blank ids. Batch results never contain them.
func presentIDs(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
