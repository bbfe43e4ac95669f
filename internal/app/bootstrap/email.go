package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	"github.com/wolfman30/incident-response-ai/internal/notify"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

// BuildEmailSender picks the outbound email transport. It returns the sender,
// the provider name, and a reason when delivery is off. A nil sender means
// drafts are produced but never sent.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.EmailDeliveryEnabled {
		return nil, "", "EMAIL_DELIVERY_ENABLED is false"
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	switch provider {
	case "", "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, "sendgrid", "SENDGRID_API_KEY not set"
		}
		return sender, "sendgrid", ""
	case "ses":
		if awsCfg == nil {
			return nil, "ses", "aws config unavailable"
		}
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil, "ses", "SES_FROM_EMAIL not set"
		}
		client := sesv2.NewFromConfig(*awsCfg)
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), "ses", ""
	case "stub", "log":
		return notify.NewStubEmailSender(logger), "stub", ""
	default:
		return nil, provider, "unknown EMAIL_PROVIDER"
	}
}
