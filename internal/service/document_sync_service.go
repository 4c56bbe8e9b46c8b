package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/membership-consent-api/internal/models"
	"github.com/noah-isme/membership-consent-api/pkg/docsource"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

const maxChangeSummaryRunes = 500

// languageFilePattern matches "<name>.md" (canonical) and "<name>-<lang>.md" (translation).
var languageFilePattern = regexp.MustCompile(`^([A-Za-z0-9_-]+?)(?:-([A-Za-z]{2}))?\.md$`)

// Sync errors surfaced to administrators.
var (
	ErrDocumentNotConfigured = appErrors.New("DOCUMENT_NOT_CONFIGURED", 422, "legal document has no source folder configured")
	ErrCanonicalMissing      = appErrors.New("CANONICAL_FILE_MISSING", 422, "source folder has no canonical language file")
	ErrSourceUnavailable     = appErrors.New("SOURCE_UNAVAILABLE", 502, "document source request failed")
	ErrSourceBackoff         = appErrors.New("SOURCE_BACKOFF", 503, "document source is backing off")
)

type syncDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.LegalDocument, error)
	ListActive(ctx context.Context) ([]models.LegalDocument, error)
	TouchSynced(ctx context.Context, id string, syncedAt time.Time) error
	AppendVersion(ctx context.Context, version *models.DocumentVersion, syncedAt time.Time) (bool, error)
}

type versionReader interface {
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
}

// DocumentSyncConfig tunes the sync engine.
type DocumentSyncConfig struct {
	Concurrency     int
	EveryoneScopeID string
}

// DocumentSyncOption customises a DocumentSyncService.
type DocumentSyncOption func(*DocumentSyncService)

// WithSyncClock replaces the time source.
func WithSyncClock(clock func() time.Time) DocumentSyncOption {
	return func(s *DocumentSyncService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSyncMetrics records per-document outcomes.
func WithSyncMetrics(metrics *MetricsService) DocumentSyncOption {
	return func(s *DocumentSyncService) {
		s.metrics = metrics
	}
}

// WithSyncCache invalidates cached required versions after each applied version.
func WithSyncCache(cache *CacheService) DocumentSyncOption {
	return func(s *DocumentSyncService) {
		s.cache = cache
	}
}

// WithSourceBackoff gates SyncAll and CheckForUpdates.
func WithSourceBackoff(backoff *SourceBackoff) DocumentSyncOption {
	return func(s *DocumentSyncService) {
		s.backoff = backoff
	}
}

// DocumentSyncService pulls legal document text from the document source and
// records every content change as a new immutable version.
type DocumentSyncService struct {
	documents syncDocumentStore
	versions  versionReader
	required  RequiredVersionLister
	source    docsource.Source
	logger    *zap.Logger
	cfg       DocumentSyncConfig

	clock   func() time.Time
	metrics *MetricsService
	cache   *CacheService
	backoff *SourceBackoff
}

// NewDocumentSyncService constructs the sync engine.
func NewDocumentSyncService(
	documents syncDocumentStore,
	versions versionReader,
	required RequiredVersionLister,
	source docsource.Source,
	cfg DocumentSyncConfig,
	logger *zap.Logger,
	opts ...DocumentSyncOption,
) *DocumentSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.EveryoneScopeID == "" {
		cfg.EveryoneScopeID = models.ScopeEveryone
	}
	svc := &DocumentSyncService{
		documents: documents,
		versions:  versions,
		required:  required,
		source:    source,
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SyncAll syncs every active document. One document failing never stops the
// others; its failure is reported in the result list.
func (s *DocumentSyncService) SyncAll(ctx context.Context) (*models.SyncReport, error) {
	if err := s.checkBackoff(ctx); err != nil {
		return nil, err
	}

	startedAt := s.clock().UTC()
	docs, err := s.documents.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active documents")
	}

	s.logger.Info("starting legal document sync", zap.Int("documents", len(docs)), zap.Int("concurrency", s.cfg.Concurrency))

	results := make([]models.SyncResult, len(docs))
	sourceFailed := make([]bool, len(docs))
	var rateLimited atomic.Bool

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = skippedResult(doc, "sync cancelled")
				return nil
			}
			if rateLimited.Load() {
				results[i] = skippedResult(doc, "document source rate limited")
				return nil
			}

			res, syncErr := s.syncOne(ctx, doc, startedAt)
			if syncErr != nil {
				res.Outcome = models.SyncOutcomeFailed
				res.Message = syncErr.Error()
				sourceFailed[i] = errors.Is(syncErr, ErrSourceUnavailable) || errors.Is(syncErr, ErrSourceBackoff)
				if rl, ok := docsource.AsRateLimit(syncErr); ok {
					rateLimited.Store(true)
					if s.backoff != nil {
						s.backoff.RecordRateLimit(ctx, rl.Reset)
					}
				}
				s.logger.Error("error syncing legal document",
					zap.String("document_id", doc.ID),
					zap.String("document_name", doc.Name),
					zap.Error(syncErr))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := &models.SyncReport{StartedAt: startedAt, Results: results, Updated: []models.LegalDocument{}}
	attempted, transportFailures := 0, 0
	for i, res := range results {
		s.metrics.RecordSyncResult(res.Outcome)
		if res.Outcome != models.SyncOutcomeSkipped {
			attempted++
		}
		if sourceFailed[i] {
			transportFailures++
		}
		if res.Outcome == models.SyncOutcomeUpdated && res.Version != nil {
			updated := docs[i]
			identity := res.Version.CommitSHA
			updated.CurrentCommitSHA = &identity
			syncedAt := startedAt
			updated.LastSyncedAt = &syncedAt
			report.Updated = append(report.Updated, updated)
		}
	}

	if s.backoff != nil && !rateLimited.Load() {
		switch {
		case attempted > 0 && transportFailures == attempted:
			until := s.backoff.RecordFailure(ctx)
			s.logger.Warn("every document failed on the source, backing off", zap.Time("retry_after", until))
		case attempted > transportFailures:
			s.backoff.Reset(ctx)
		}
	}

	if len(report.Updated) > 0 {
		s.invalidateRequiredVersions(ctx)
	}

	report.FinishedAt = s.clock().UTC()
	s.metrics.ObserveSyncRun(report.FinishedAt.Sub(startedAt))
	s.logger.Info("legal document sync finished",
		zap.Int("updated", report.Count(models.SyncOutcomeUpdated)),
		zap.Int("unchanged", report.Count(models.SyncOutcomeUnchanged)),
		zap.Int("skipped", report.Count(models.SyncOutcomeSkipped)),
		zap.Int("failed", report.Count(models.SyncOutcomeFailed)))
	return report, nil
}

// SyncDocument syncs one document regardless of its active flag.
func (s *DocumentSyncService) SyncDocument(ctx context.Context, id string) (*models.SyncResult, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("legal document not found", zap.String("document_id", id))
			return nil, appErrors.Clone(appErrors.ErrNotFound, "legal document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load legal document")
	}

	res, err := s.syncOne(ctx, *doc, s.clock().UTC())
	if err != nil {
		res.Outcome = models.SyncOutcomeFailed
		res.Message = err.Error()
		if rl, ok := docsource.AsRateLimit(err); ok && s.backoff != nil {
			s.backoff.RecordRateLimit(ctx, rl.Reset)
		}
	}
	s.metrics.RecordSyncResult(res.Outcome)
	if err != nil {
		return &res, err
	}
	if res.Outcome == models.SyncOutcomeUpdated {
		s.invalidateRequiredVersions(ctx)
	}
	return &res, nil
}

// CheckForUpdates lists active documents whose canonical file has changed at
// the source since the last sync. Nothing is written.
func (s *DocumentSyncService) CheckForUpdates(ctx context.Context) ([]models.LegalDocument, error) {
	if err := s.checkBackoff(ctx); err != nil {
		return nil, err
	}

	docs, err := s.documents.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active documents")
	}

	pending := make([]models.LegalDocument, 0)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return pending, err
		}
		if !doc.HasSourceFolder() {
			continue
		}

		identity, err := s.latestIdentity(ctx, doc)
		if err != nil {
			s.logger.Warn("error checking for updates", zap.String("document_name", doc.Name), zap.Error(err))
			if rl, ok := docsource.AsRateLimit(err); ok {
				if s.backoff != nil {
					s.backoff.RecordRateLimit(ctx, rl.Reset)
				}
				break
			}
			continue
		}
		if identity != "" && identity != doc.ContentIdentity() {
			pending = append(pending, doc)
		}
	}
	return pending, nil
}

// GetRequiredVersions returns the current version of every active required
// document of the everyone scope.
func (s *DocumentSyncService) GetRequiredVersions(ctx context.Context) ([]models.RequiredVersion, error) {
	return s.GetRequiredVersionsForScope(ctx, s.cfg.EveryoneScopeID)
}

// GetRequiredVersionsForScope returns the current required versions of a scope.
func (s *DocumentSyncService) GetRequiredVersionsForScope(ctx context.Context, scopeID string) ([]models.RequiredVersion, error) {
	versions, err := s.required.ListRequired(ctx, scopeID, s.clock().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list required versions")
	}
	return versions, nil
}

// GetActiveDocuments lists active documents.
func (s *DocumentSyncService) GetActiveDocuments(ctx context.Context) ([]models.LegalDocument, error) {
	docs, err := s.documents.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active documents")
	}
	return docs, nil
}

// GetVersionByID fetches one version.
func (s *DocumentSyncService) GetVersionByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	version, err := s.versions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document version")
	}
	return version, nil
}

// ListVersions returns the version history of a document, newest first.
func (s *DocumentSyncService) ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "legal document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load legal document")
	}
	versions, err := s.versions.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document versions")
	}
	return versions, nil
}

// syncOne applies the source state of doc. The returned result is meaningful
// even when err is non-nil.
func (s *DocumentSyncService) syncOne(ctx context.Context, doc models.LegalDocument, now time.Time) (models.SyncResult, error) {
	result := models.SyncResult{DocumentID: doc.ID, DocumentName: doc.Name, Outcome: models.SyncOutcomeUnchanged}

	folder := doc.Folder()
	if folder == "" {
		return result, appErrors.Clone(ErrDocumentNotConfigured, fmt.Sprintf("legal document %q has no source folder configured", doc.Name))
	}

	files, err := s.discoverLanguageFiles(ctx, folder)
	if err != nil {
		if docsource.IsNotFound(err) {
			s.logger.Warn("source folder not found", zap.String("document_name", doc.Name), zap.String("folder", folder))
			result.Message = "source folder not found"
			return result, nil
		}
		return result, sourceError(err, "failed to list source folder")
	}

	canonicalPath, ok := files[models.CanonicalLanguage]
	if !ok {
		return result, appErrors.Clone(ErrCanonicalMissing, fmt.Sprintf("no canonical file found in %s", folder))
	}

	canonical, err := s.source.FetchFile(ctx, canonicalPath)
	if err != nil {
		if docsource.IsNotFound(err) {
			s.logger.Warn("canonical file not found", zap.String("path", canonicalPath))
			result.Message = "canonical file not found"
			return result, nil
		}
		return result, sourceError(err, "failed to fetch canonical file")
	}

	if canonical.ContentIdentity == doc.ContentIdentity() {
		if err := s.documents.TouchSynced(ctx, doc.ID, now); err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sync time")
		}
		s.logger.Debug("legal document unchanged", zap.String("document_name", doc.Name))
		return result, nil
	}

	content := models.LocalizedContent{models.CanonicalLanguage: canonical.Text}
	for lang, path := range files {
		if lang == models.CanonicalLanguage {
			continue
		}
		translation, err := s.source.FetchFile(ctx, path)
		if err != nil {
			if docsource.IsNotFound(err) {
				s.logger.Warn("translation not found, omitting language",
					zap.String("document_name", doc.Name),
					zap.String("language", lang),
					zap.String("path", path))
				continue
			}
			// Storing the version without this language would record the new
			// identity and the translation would never be fetched again.
			return result, sourceError(err, fmt.Sprintf("failed to fetch %s translation", lang))
		}
		content[lang] = translation.Text
	}

	version := &models.DocumentVersion{
		LegalDocumentID: doc.ID,
		CommitSHA:       canonical.ContentIdentity,
		Content:         content,
		EffectiveFrom:   now,
	}
	if summary := s.changeSummary(ctx, canonicalPath); summary != "" {
		version.ChangesSummary = &summary
	}

	applied, err := s.documents.AppendVersion(ctx, version, now)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document version")
	}
	if !applied {
		result.Message = "content already synced"
		return result, nil
	}

	result.Outcome = models.SyncOutcomeUpdated
	result.VersionNumber = version.VersionNumber
	result.Version = version
	s.logger.Info("synced new legal document version",
		zap.String("document_name", doc.Name),
		zap.String("version", version.VersionNumber),
		zap.String("content_identity", version.CommitSHA),
		zap.Strings("languages", content.Languages()))
	return result, nil
}

func (s *DocumentSyncService) latestIdentity(ctx context.Context, doc models.LegalDocument) (string, error) {
	files, err := s.discoverLanguageFiles(ctx, doc.Folder())
	if err != nil {
		if docsource.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	path, ok := files[models.CanonicalLanguage]
	if !ok {
		return "", nil
	}
	return s.source.LatestContentIdentity(ctx, path)
}

// discoverLanguageFiles maps language code to file path for the document
// stored in folder.
func (s *DocumentSyncService) discoverLanguageFiles(ctx context.Context, folder string) (map[string]string, error) {
	entries, err := s.source.ListFiles(ctx, folder)
	if err != nil {
		return nil, err
	}
	return classifyLanguageFiles(folder, entries), nil
}

type languageFile struct {
	base     string
	lang     string
	path     string
	suffixed bool
}

// classifyLanguageFiles keeps the files sharing the base name of the first
// canonical file. An unsuffixed file always supplies the canonical language.
func classifyLanguageFiles(folder string, entries []docsource.File) map[string]string {
	candidates := make([]languageFile, 0, len(entries))
	canonicalBase := ""
	for _, entry := range entries {
		if !entry.IsFile {
			continue
		}
		match := languageFilePattern.FindStringSubmatch(entry.Name)
		if match == nil {
			continue
		}
		file := languageFile{base: match[1], lang: models.CanonicalLanguage, path: entry.Path}
		if match[2] != "" {
			file.lang = strings.ToLower(match[2])
			file.suffixed = true
		} else if canonicalBase == "" {
			canonicalBase = file.base
		}
		if file.path == "" {
			file.path = strings.Trim(folder, "/") + "/" + entry.Name
		}
		candidates = append(candidates, file)
	}

	files := make(map[string]string)
	if canonicalBase == "" {
		return files
	}
	for _, file := range candidates {
		if !strings.EqualFold(file.base, canonicalBase) {
			continue
		}
		if file.suffixed && file.lang == models.CanonicalLanguage {
			continue
		}
		if _, taken := files[file.lang]; taken {
			continue
		}
		files[file.lang] = file.path
	}
	return files
}

// changeSummary returns the first line of the latest commit message for path.
// Failures are logged and yield "" so the repository default applies.
func (s *DocumentSyncService) changeSummary(ctx context.Context, path string) string {
	message, err := s.source.CommitMessage(ctx, path)
	if err != nil {
		s.logger.Warn("failed to read commit message", zap.String("path", path), zap.Error(err))
		return ""
	}
	return summarizeCommitMessage(message)
}

func summarizeCommitMessage(message string) string {
	line := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if utf8.RuneCountInString(line) > maxChangeSummaryRunes {
		line = string([]rune(line)[:maxChangeSummaryRunes])
	}
	return line
}

func (s *DocumentSyncService) checkBackoff(ctx context.Context) error {
	if s.backoff == nil {
		return nil
	}
	if until, ok := s.backoff.Allow(ctx); !ok {
		return appErrors.Clone(ErrSourceBackoff, fmt.Sprintf("document source is backing off until %s", until.UTC().Format(time.RFC3339)))
	}
	return nil
}

func (s *DocumentSyncService) invalidateRequiredVersions(ctx context.Context) {
	if err := s.cache.InvalidateRequiredVersions(ctx); err != nil {
		s.logger.Warn("failed to invalidate required versions cache", zap.Error(err))
	}
}

func sourceError(err error, message string) error {
	if _, ok := docsource.AsRateLimit(err); ok {
		return appErrors.Wrap(err, ErrSourceBackoff.Code, ErrSourceBackoff.Status, "document source rate limited")
	}
	return appErrors.Wrap(err, ErrSourceUnavailable.Code, ErrSourceUnavailable.Status, message)
}

func skippedResult(doc models.LegalDocument, reason string) models.SyncResult {
	return models.SyncResult{DocumentID: doc.ID, DocumentName: doc.Name, Outcome: models.SyncOutcomeSkipped, Message: reason}
}
