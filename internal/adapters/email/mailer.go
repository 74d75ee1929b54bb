package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"gigbook/internal/config"
	"gigbook/internal/domain/band"
	"gigbook/pkg/logger"
)

// NewMailer builds an invite mailer from config. Provider "ses" uses AWS
// SES; anything else falls back to a no-op that only logs.
func NewMailer(cfg config.MailerConfig, log logger.Logger) band.Mailer {
	switch cfg.Provider {
	case "ses":
		if cfg.SES.InsecureSkipVerify {
			log.Warn("mailer: TLS certificate verification disabled for SES; development only")
		}
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.SES.InsecureSkipVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
		awsCfg := aws.Config{
			Region: cfg.SES.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					cfg.SES.AccessKeyID,
					cfg.SES.SecretAccessKey,
					"",
				),
			),
			HTTPClient: httpClient,
		}
		return &sesMailer{
			client: ses.NewFromConfig(awsCfg),
			from:   formatFrom(cfg.FromName, cfg.FromAddress),
		}
	default:
		return &noopMailer{log: log}
	}
}

type sesMailer struct {
	client *ses.Client
	from   string
}

func (m *sesMailer) SendInvite(ctx context.Context, to, bandName, link string) error {
	subject := fmt.Sprintf("You're invited to join %s", bandName)
	body := fmt.Sprintf(
		"You've been invited to join the band %s on Gigbook.\n\nOpen this link to accept:\n%s\n\nThe invite expires in a week.\n",
		bandName, link,
	)

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
	})
	if err != nil {
		return fmt.Errorf("send invite mail: %w", err)
	}
	return nil
}

type noopMailer struct {
	log logger.Logger
}

func (m *noopMailer) SendInvite(_ context.Context, to, bandName, link string) error {
	m.log.Info("mailer: invite not sent (noop provider)", "to", to, "band", bandName, "link", link)
	return nil
}

func formatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
