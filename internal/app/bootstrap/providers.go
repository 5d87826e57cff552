package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/leaddesk/internal/archive"
	"github.com/wolfman30/leaddesk/internal/callprovider"
	appconfig "github.com/wolfman30/leaddesk/internal/config"
	"github.com/wolfman30/leaddesk/internal/insights"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/notify"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// BuildProviderClient returns the call-provider client, or nil when no provider is configured.
func BuildProviderClient(cfg *appconfig.Config, logger *logging.Logger) (*callprovider.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.ConversationsAPIURL) == "" {
		logger.Warn("no call provider configured; sync passes will only read stored leads")
		return nil, nil
	}
	client, err := callprovider.New(callprovider.Config{
		BaseURL:    cfg.ConversationsAPIURL,
		APIKey:     cfg.ConversationsAPIKey,
		Timeout:    cfg.ConversationsTimeout,
		MaxRetries: cfg.ConversationsMaxRetries,
		RatePerSec: cfg.ConversationsRatePerSec,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: call provider: %w", err)
	}
	return client, nil
}

// BuildEmailSender picks the email transport named by EMAIL_PROVIDER. Missing credentials
// fall back to the stub sender, which only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid", "":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("email provider configured", "provider", "sendgrid")
			return sender
		}
		logger.Warn("sendgrid api key missing; using stub email sender")
	case "ses":
		if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
			logger.Info("email provider configured", "provider", "ses")
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("ses selected without aws config or sender address; using stub email sender")
	case "stub", "none":
	default:
		logger.Warn("unknown email provider; using stub email sender", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger)
}

// BuildInsightGenerator uses Bedrock when a model is configured and the deterministic
// summary otherwise.
func BuildInsightGenerator(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) leads.InsightGenerator {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.BedrockModelID) == "" {
		logger.Info("no bedrock model configured; lead insights use the built-in summary")
		return insights.NewFallbackGenerator()
	}
	logger.Info("lead insights using bedrock", "model", cfg.BedrockModelID)
	return insights.NewBedrockGenerator(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID, logger)
}

// BuildArchiver returns the S3 archive for deleted leads, or nil when ARCHIVE_BUCKET is unset.
func BuildArchiver(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) leads.DeletionArchiver {
	if cfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if awsCfg == nil {
		logger.Warn("archive bucket set without aws config; deleted leads are not archived")
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets by path
		o.UsePathStyle = awsCfg.BaseEndpoint != nil
	})
	logger.Info("deleted leads archived", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(client, cfg.ArchiveBucket, logger)
}
