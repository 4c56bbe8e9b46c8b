package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
	"github.com/noah-isme/membership-consent-api/pkg/export"
	"github.com/noah-isme/membership-consent-api/pkg/jobs"
)

// JobConsentLapsed is the queue job type that notifies one lapsed member.
const JobConsentLapsed = "consent.lapsed"

const defaultBoardRole = "Board"

type lapsedMemberFinder interface {
	GetUsersRequiringStatusUpdate(ctx context.Context) ([]string, error)
	GetExpiredConsentVersions(ctx context.Context, userIDs []string) (map[string][]models.RequiredVersion, error)
}

type newVersionReader interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.RequiredVersion, error)
}

type roleMemberLister interface {
	ListActiveUserIDsByRole(ctx context.Context, roleName string, at time.Time) ([]string, error)
}

type profileLister interface {
	ListByUserIDs(ctx context.Context, userIDs []string) (map[string]models.Profile, error)
}

type jobQueue interface {
	Handle(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ComplianceConfig tunes the compliance jobs.
type ComplianceConfig struct {
	BoardRole string
}

// ComplianceServiceOption customises the service.
type ComplianceServiceOption func(*ComplianceService)

// WithComplianceClock overrides the clock.
func WithComplianceClock(clock func() time.Time) ComplianceServiceOption {
	return func(s *ComplianceService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithComplianceMetrics records sweep gauges.
func WithComplianceMetrics(metrics *MetricsService) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.metrics = metrics
	}
}

// ComplianceService runs the scheduled compliance jobs: the lapsed member
// sweep, the board digest and the non-compliance report.
type ComplianceService struct {
	members  lapsedMemberFinder
	versions newVersionReader
	roles    roleMemberLister
	profiles profileLister
	queue    jobQueue
	gateway  NotificationGateway
	csv      csvRenderer
	pdf      pdfRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ComplianceConfig
	clock    func() time.Time
}

// NewComplianceService wires the service and registers the lapsed member job
// handler on queue. The queue must be started by the caller.
func NewComplianceService(
	members lapsedMemberFinder,
	versions newVersionReader,
	roles roleMemberLister,
	profiles profileLister,
	queue jobQueue,
	gateway NotificationGateway,
	cfg ComplianceConfig,
	logger *zap.Logger,
	opts ...ComplianceServiceOption,
) *ComplianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gateway == nil {
		gateway = NewLogNotificationGateway(logger)
	}
	if strings.TrimSpace(cfg.BoardRole) == "" {
		cfg.BoardRole = defaultBoardRole
	}
	svc := &ComplianceService{
		members:  members,
		versions: versions,
		roles:    roles,
		profiles: profiles,
		queue:    queue,
		gateway:  gateway,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	if queue != nil {
		queue.Handle(JobConsentLapsed, svc.handleConsentLapsed)
	}
	return svc
}

// Sweep finds members whose required consent lapsed and queues one
// notification job per member. Membership status itself is derived, so the
// sweep never writes to the database.
func (s *ComplianceService) Sweep(ctx context.Context) (*models.SweepSummary, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "job queue is not configured")
	}
	summary := &models.SweepSummary{RunAt: s.clock(), Lapsed: []string{}}
	lapsed, err := s.members.GetUsersRequiringStatusUpdate(ctx)
	if err != nil {
		return nil, err
	}
	summary.Lapsed = append(summary.Lapsed, lapsed...)
	s.metrics.SetLapsedMembers(len(lapsed))

	for _, userID := range lapsed {
		job := jobs.Job{ID: uuid.NewString(), Type: JobConsentLapsed, Payload: userID}
		if err := s.queue.Enqueue(job); err != nil {
			summary.Failed++
			s.logger.Error("failed to enqueue lapsed consent notification", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		summary.Enqueued++
	}

	s.logger.Info("compliance sweep finished",
		zap.Int("lapsed", len(lapsed)),
		zap.Int("enqueued", summary.Enqueued),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *ComplianceService) handleConsentLapsed(ctx context.Context, job jobs.Job) error {
	userID, ok := job.Payload.(string)
	if !ok || userID == "" {
		return errors.New("consent.lapsed job requires a user id payload")
	}
	expired, err := s.members.GetExpiredConsentVersions(ctx, []string{userID})
	if err != nil {
		return err
	}
	versions := expired[userID]
	if len(versions) == 0 {
		s.logger.Debug("member consented before notification", zap.String("user_id", userID))
		return nil
	}
	return s.gateway.NotifyConsentLapsed(ctx, userID, versions)
}

// Digest assembles the board digest for the previous UTC day and sends it to
// every member holding the board role. It reports whether anything was sent.
func (s *ComplianceService) Digest(ctx context.Context) (*models.ComplianceDigest, bool, error) {
	now := s.clock().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -1)

	versions, err := s.versions.ListCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, false, internalError(err, "failed to list new document versions")
	}
	lapsed, err := s.members.GetUsersRequiringStatusUpdate(ctx)
	if err != nil {
		return nil, false, err
	}
	if versions == nil {
		versions = []models.RequiredVersion{}
	}
	digest := &models.ComplianceDigest{
		Date:              start.Format("2006-01-02"),
		NewVersions:       versions,
		NonCompliantCount: len(lapsed),
	}
	if digest.Empty() {
		s.logger.Info("compliance digest skipped, nothing to report", zap.String("date", digest.Date))
		return digest, false, nil
	}

	recipients, err := s.roles.ListActiveUserIDsByRole(ctx, s.cfg.BoardRole, now)
	if err != nil {
		return nil, false, internalError(err, "failed to list digest recipients")
	}
	if len(recipients) == 0 {
		s.logger.Warn("compliance digest has no recipients", zap.String("role", s.cfg.BoardRole))
		return digest, false, nil
	}
	if err := s.gateway.SendComplianceDigest(ctx, recipients, *digest); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrBadGateway.Code, appErrors.ErrBadGateway.Status, "failed to send compliance digest")
	}
	return digest, true, nil
}

// NonCompliantMembers lists lapsed members with the documents they are missing, sorted by user id.
func (s *ComplianceService) NonCompliantMembers(ctx context.Context) ([]models.NonCompliantMember, error) {
	lapsed, err := s.members.GetUsersRequiringStatusUpdate(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]models.NonCompliantMember, 0, len(lapsed))
	if len(lapsed) == 0 {
		return members, nil
	}
	expired, err := s.members.GetExpiredConsentVersions(ctx, lapsed)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.ListByUserIDs(ctx, lapsed)
	if err != nil {
		return nil, internalError(err, "failed to load member profiles")
	}
	for _, userID := range lapsed {
		member := models.NonCompliantMember{
			UserID:          userID,
			DisplayName:     profiles[userID].DisplayName,
			MissingVersions: []string{},
			MissingNames:    []string{},
		}
		for _, v := range expired[userID] {
			member.MissingVersions = append(member.MissingVersions, v.ID)
			member.MissingNames = append(member.MissingNames, v.DocumentName)
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

// Report renders the non-compliant members in the requested format.
func (s *ComplianceService) Report(ctx context.Context, format export.Format) ([]byte, error) {
	members, err := s.NonCompliantMembers(ctx)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Title:   "Non-compliant members " + s.clock().UTC().Format("2006-01-02"),
		Headers: []string{"user_id", "display_name", "missing_documents", "missing_versions"},
		Rows:    make([]map[string]string, 0, len(members)),
	}
	for _, m := range members {
		data.Rows = append(data.Rows, map[string]string{
			"user_id":           m.UserID,
			"display_name":      m.DisplayName,
			"missing_documents": strings.Join(m.MissingNames, "; "),
			"missing_versions":  strings.Join(m.MissingVersions, "; "),
		})
	}

	var out []byte
	switch format {
	case export.FormatPDF:
		out, err = s.pdf.Render(data)
	case export.FormatCSV, "":
		out, err = s.csv.Render(data)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if err != nil {
		return nil, internalError(err, "failed to render compliance report")
	}
	return out, nil
}
