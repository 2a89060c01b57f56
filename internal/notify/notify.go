// Package notify delivers series lifecycle notices over email and SMS.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"recurring-scheduler/internal/common/config"
	stderrors "recurring-scheduler/internal/common/errors"
	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/common/validation"
)

// Kind identifies the lifecycle event a notice announces.
type Kind string

const (
	KindUpcoming   Kind = "recurring_upcoming"
	KindGenerated  Kind = "recurring_generated"
	KindCompleted  Kind = "recurring_series_completed"
	KindAutoPaused Kind = "recurring_series_paused"
)

// Notice is one outbound message about a recurring series.
type Notice struct {
	Kind         Kind
	TeamID       string
	SeriesID     string
	MerchantName string
	DealNumber   string
	Sequence     int
	TotalCount   *int
	Amount       *float64
	Currency     string
	DueAt        *time.Time
}

// Dispatcher sends notices. Implementations decide the channel mix.
type Dispatcher interface {
	Send(ctx context.Context, notice Notice) error
}

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSDispatcher sends notices through SES (email) and SNS (SMS).
// Auto-pause notices are the only ones urgent enough for SMS.
type AWSDispatcher struct {
	cfg       config.NotificationConfig
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func NewAWSDispatcher(ctx context.Context, cfg config.NotificationConfig, db *sql.DB, log logger.Logger) (*AWSDispatcher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &AWSDispatcher{
		cfg:       cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
	}, nil
}

// NewAWSDispatcherWithClients injects SES/SNS clients, used by tests.
func NewAWSDispatcherWithClients(cfg config.NotificationConfig, db *sql.DB, log logger.Logger, sesClient SESService, snsClient SNSService) *AWSDispatcher {
	return &AWSDispatcher{
		cfg:       cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

func (d *AWSDispatcher) Send(ctx context.Context, notice Notice) error {
	template, exists := templates[notice.Kind]
	if !exists {
		return fmt.Errorf("no template for notice kind: %s", notice.Kind)
	}

	email, phone, err := d.teamContact(ctx, notice.TeamID)
	if err != nil {
		// A missing team is not a delivery failure worth retrying.
		d.logger.Warn("team contact not found, dropping notice", map[string]interface{}{
			"teamId":   notice.TeamID,
			"seriesId": notice.SeriesID,
			"kind":     string(notice.Kind),
		})
		return nil
	}

	data := noticeData(notice)
	subject := renderTemplate(template.subject, data)
	body := renderTemplate(template.body, data)

	if d.cfg.Email.Enabled && validation.ValidateEmail(email) {
		if err := d.sendEmail(ctx, email, subject, body); err != nil {
			return stderrors.NewNotificationSendFailedError("email", err)
		}
	}

	// SMS only for urgent notices.
	if d.cfg.SMS.Enabled && validation.ValidatePhone(phone) && notice.Kind == KindAutoPaused {
		if err := d.sendSMS(ctx, phone, body); err != nil {
			return stderrors.NewNotificationSendFailedError("sms", err)
		}
	}

	d.logger.Info("notice dispatched", map[string]interface{}{
		"kind":     string(notice.Kind),
		"teamId":   notice.TeamID,
		"seriesId": notice.SeriesID,
	})
	return nil
}

func (d *AWSDispatcher) teamContact(ctx context.Context, teamID string) (string, string, error) {
	var email, phone string
	err := d.db.QueryRowContext(ctx,
		`SELECT email, phone FROM teams WHERE id = $1`, teamID).Scan(&email, &phone)
	return email, phone, err
}

func (d *AWSDispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.cfg.Email.FromEmail),
	})
	return err
}

func (d *AWSDispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// Noop drops every notice. Used when notifications are disabled.
type Noop struct{}

func (Noop) Send(context.Context, Notice) error { return nil }
