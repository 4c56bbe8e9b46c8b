package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

// NotificationGateway delivers compliance notifications. Implementations
// receive data only; rendering and transport belong to them.
type NotificationGateway interface {
	NotifyConsentLapsed(ctx context.Context, userID string, versions []models.RequiredVersion) error
	SendComplianceDigest(ctx context.Context, recipients []string, digest models.ComplianceDigest) error
}

// LogNotificationGateway writes notifications to the structured log.
type LogNotificationGateway struct {
	logger *zap.Logger
}

// NewLogNotificationGateway constructs the gateway.
func NewLogNotificationGateway(logger *zap.Logger) *LogNotificationGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationGateway{logger: logger.Named("notifications")}
}

// NotifyConsentLapsed logs the lapsed versions of one member.
func (g *LogNotificationGateway) NotifyConsentLapsed(_ context.Context, userID string, versions []models.RequiredVersion) error {
	names := make([]string, 0, len(versions))
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.DocumentName)
		ids = append(ids, v.ID)
	}
	g.logger.Info("consent lapsed",
		zap.String("user_id", userID),
		zap.Strings("documents", names),
		zap.Strings("version_ids", ids),
	)
	return nil
}

// SendComplianceDigest logs the board digest.
func (g *LogNotificationGateway) SendComplianceDigest(_ context.Context, recipients []string, digest models.ComplianceDigest) error {
	labels := make([]string, 0, len(digest.NewVersions))
	for _, v := range digest.NewVersions {
		labels = append(labels, v.DocumentName+" "+v.VersionNumber)
	}
	g.logger.Info("compliance digest",
		zap.String("date", digest.Date),
		zap.Strings("recipients", recipients),
		zap.Strings("new_versions", labels),
		zap.Int("non_compliant", digest.NonCompliantCount),
	)
	return nil
}
