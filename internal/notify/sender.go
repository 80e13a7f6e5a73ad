package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// LogSender writes reminders to the log instead of delivering them
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to Recipient, msg Message) error {
	s.log.Info("reminder",
		zap.String("account_id", to.AccountID),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}

// sesAPI is the part of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender emails reminders through Amazon SES
type SESSender struct {
	client sesAPI
	from   string
	log    *zap.Logger
}

// NewSESSender loads the default AWS configuration for region and creates an SES sender
func NewSESSender(ctx context.Context, region, from string, log *zap.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Info("email reminders enabled", zap.String("from", from), zap.String("region", region))
	return &SESSender{client: sesv2.NewFromConfig(cfg), from: from, log: log}, nil
}

func (s *SESSender) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Email == "" {
		return fmt.Errorf("account %s has no email address", to.AccountID)
	}

	textBody := fmt.Sprintf("Hi %s,\n\n%s\n\n---\nThis is an automated reminder from Commit. Please do not reply.\n",
		to.Username, msg.Body)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>%s</p>
	<p style="font-size: 12px; color: #666;">This is an automated reminder from Commit. Please do not reply.</p>
</body>
</html>
`, html.EscapeString(to.Username), html.EscapeString(msg.Body))

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Title), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to.Email, err)
	}
	s.log.Debug("reminder email sent",
		zap.String("account_id", to.AccountID),
		zap.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
