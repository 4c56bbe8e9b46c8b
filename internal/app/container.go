package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/repository"
	"github.com/noah-isme/membership-consent-api/internal/service"
	"github.com/noah-isme/membership-consent-api/pkg/cache"
	"github.com/noah-isme/membership-consent-api/pkg/config"
	"github.com/noah-isme/membership-consent-api/pkg/database"
	"github.com/noah-isme/membership-consent-api/pkg/docsource"
	"github.com/noah-isme/membership-consent-api/pkg/jobs"
)

// Container holds the wired services shared by the HTTP server and the CLI.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Queue      *jobs.Queue
	Tokens     *service.TokenService
	Sync       *service.DocumentSyncService
	Calculator *service.MembershipCalculator
	Consents   *service.ConsentService
	Documents  *service.LegalDocumentService
	Compliance *service.ComplianceService
}

// Build connects to the database, optionally to redis, and wires every
// service. Redis being unreachable disables caching instead of failing.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger, DB: db}
	c.Metrics = service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			c.Redis = client
			cacheRepo = repository.NewCacheRepository(client, logger)
		}
	}
	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, cfg.Cache.RequiredVersionsTTL, logger, cfg.Cache.Enabled && cacheRepo != nil)

	source, err := NewDocumentSource(cfg.Source, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	documents := repository.NewLegalDocumentRepository(db)
	versions := repository.NewDocumentVersionRepository(db)
	consents := repository.NewConsentRepository(db)
	roles := repository.NewRoleAssignmentRepository(db)
	profiles := repository.NewProfileRepository(db)
	required := service.NewCachedRequiredVersions(versions, c.Cache, cfg.Cache.RequiredVersionsTTL)
	validate := validator.New()

	c.Queue = jobs.NewQueue("compliance", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logger,
		OnComplete: func(job jobs.Job, err error) {
			c.Metrics.RecordJobRun(job.Type, err)
		},
	})

	c.Tokens = service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})
	backoff := service.NewSourceBackoff(c.Cache, cfg.Sync.BackoffBase, cfg.Sync.BackoffMax, logger)
	c.Sync = service.NewDocumentSyncService(documents, versions, required, source,
		service.DocumentSyncConfig{Concurrency: cfg.Sync.Concurrency, EveryoneScopeID: cfg.Scopes.EveryoneID},
		logger,
		service.WithSyncMetrics(c.Metrics),
		service.WithSyncCache(c.Cache),
		service.WithSourceBackoff(backoff),
	)
	c.Calculator = service.NewMembershipCalculator(profiles, roles, consents, required, logger,
		service.WithEveryoneScope(cfg.Scopes.EveryoneID))
	c.Consents = service.NewConsentService(consents, versions, validate, logger)
	c.Documents = service.NewLegalDocumentService(documents, c.Cache, validate, logger, cfg.Scopes.EveryoneID)
	c.Compliance = service.NewComplianceService(c.Calculator, versions, roles, profiles, c.Queue,
		service.NewLogNotificationGateway(logger),
		service.ComplianceConfig{BoardRole: cfg.Scopes.BoardRole},
		logger,
		service.WithComplianceMetrics(c.Metrics),
	)
	return c, nil
}

// NewDocumentSource builds the configured document source.
func NewDocumentSource(cfg config.SourceConfig, logger *zap.Logger) (docsource.Source, error) {
	switch cfg.Driver {
	case config.SourceFilesystem:
		src, err := docsource.NewFilesystemSource(cfg.RootDir)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceGitHub, "":
		src, err := docsource.NewGitHubSource(docsource.GitHubOptions{
			Owner:       cfg.Owner,
			Repository:  cfg.Repository,
			Branch:      cfg.Branch,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.Timeout,
			Logger:      logger.Named("github"),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown document source %q", cfg.Driver)
	}
}

// Close releases connections and stops the job queue.
func (c *Container) Close() {
	if c.Queue != nil {
		c.Queue.Stop()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
