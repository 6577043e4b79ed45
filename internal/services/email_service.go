package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendSignupCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendSignupCode emails a one-time code to an address starting signup
func (s *AWSSESEmailService) SendSignupCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	verifyLink := fmt.Sprintf("%s/verify?type=onboarding&target=%s", s.baseURL, email)
	minutes := int(time.Until(expiresAt).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background-color: #f1f3f5; border-radius: 4px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Welcome to Epic Notes!</h1>
        </div>
        <p>Here's your verification code:</p>
        <p class="code">%s</p>
        <p>Enter it at <a href="%s">%s</a> to finish creating your account.</p>
        <p>This code expires in %d minutes.</p>
        <div class="footer">
            <p>If you didn't request this, you can safely ignore this email.</p>
        </div>
    </div>
</body>
</html>
`, code, verifyLink, verifyLink, minutes)

	textBody := fmt.Sprintf(`Welcome to Epic Notes!

Here's your verification code: %s

Enter it at %s to finish creating your account.

This code expires in %d minutes.

If you didn't request this, you can safely ignore this email.
`, code, verifyLink, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your Epic Notes verification code"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send signup code via SES",
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("signup code sent",
		slog.String("message_id", *result.MessageId))

	return nil
}
