package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	channelInApp = "in_app"
	channelEmail = "email"
)

// Message is one notification addressed to a single user.
type Message struct {
	UserID       uuid.UUID
	Type         enums.NotificationType
	Title        string
	Body         string
	ResourceType enums.AuditResource
	ResourceID   *uuid.UUID
	// Params are forwarded to the email template.
	Params map[string]string
}

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type emailPublisher interface {
	PublishEmail(ctx context.Context, recipient, template string, params map[string]string) (string, error)
}

type recipientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type failureCounter interface {
	IncNotificationFailure(channel string)
}

// DispatcherParams bundles the dispatcher dependencies. Email and Metrics are optional.
type DispatcherParams struct {
	Repo    creator
	Users   recipientLookup
	Email   emailPublisher
	Metrics failureCounter
	Logger  *logger.Logger
}

// Dispatcher delivers notifications after a transition has committed. Every
// failure is logged and counted; Send never reports an error to its caller.
type Dispatcher struct {
	repo    creator
	users   recipientLookup
	email   emailPublisher
	metrics failureCounter
	logg    *logger.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Email != nil && params.Users == nil {
		return nil, fmt.Errorf("user lookup required for email delivery")
	}
	return &Dispatcher{
		repo:    params.Repo,
		users:   params.Users,
		email:   params.Email,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Send writes the in-app row and, when configured, queues the email.
func (d *Dispatcher) Send(ctx context.Context, msg Message) {
	if d == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if !msg.Type.IsValid() {
		d.countFailure(channelInApp)
		if d.logg != nil {
			d.logg.Warn(d.logg.WithField(ctx, "notification_type", msg.Type), "notification.unknown_type")
		}
		return
	}

	var errs error
	if err := d.storeInApp(ctx, msg); err != nil {
		d.countFailure(channelInApp)
		errs = multierr.Append(errs, fmt.Errorf("in-app: %w", err))
	}
	if d.email != nil {
		if err := d.sendEmail(ctx, msg); err != nil {
			d.countFailure(channelEmail)
			errs = multierr.Append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if errs != nil && d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"notification_type": msg.Type,
			"user_id":           msg.UserID.String(),
			"failed_channels":   len(multierr.Errors(errs)),
		})
		d.logg.Error(logCtx, "notification dispatch failed", errs)
	}
}

func (d *Dispatcher) storeInApp(ctx context.Context, msg Message) error {
	row := &models.Notification{
		UserID:     msg.UserID,
		Type:       msg.Type,
		Title:      msg.Title,
		Message:    msg.Body,
		ResourceID: msg.ResourceID,
	}
	if msg.ResourceType != "" {
		resource := string(msg.ResourceType)
		row.ResourceType = &resource
	}
	return d.repo.Create(ctx, row)
}

func (d *Dispatcher) sendEmail(ctx context.Context, msg Message) error {
	user, err := d.users.FindByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	params := map[string]string{
		"first_name": user.FirstName,
		"full_name":  user.FullName(),
		"title":      msg.Title,
		"message":    msg.Body,
	}
	for k, v := range msg.Params {
		params[k] = v
	}
	_, err = d.email.PublishEmail(ctx, strings.TrimSpace(user.Email), string(msg.Type), params)
	return err
}

func (d *Dispatcher) countFailure(channel string) {
	if d.metrics != nil {
		d.metrics.IncNotificationFailure(channel)
	}
}
