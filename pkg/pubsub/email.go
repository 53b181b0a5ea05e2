package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 10 * time.Second

// EmailJob is the payload the external mailer consumes from the notification topic.
type EmailJob struct {
	JobID     string            `json:"job_id"`
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// EmailPublisher serializes EmailJobs onto the notification topic.
type EmailPublisher struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
}

// NewEmailPublisher wraps the client's notification publisher.
func NewEmailPublisher(client *Client, timeout time.Duration) (*EmailPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	pub := client.NotificationPublisher()
	if pub == nil {
		return nil, errNoTopic
	}
	return newEmailPublisher(&gcpPublisher{Publisher: pub}, timeout), nil
}

func newEmailPublisher(pub publisher, timeout time.Duration) *EmailPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &EmailPublisher{pub: pub, timeout: timeout, now: time.Now}
}

// PublishEmail publishes one job and waits for the server ack.
func (p *EmailPublisher) PublishEmail(ctx context.Context, recipient, template string, params map[string]string) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("email publisher not configured")
	}
	if recipient == "" || template == "" {
		return "", errors.New("recipient and template are required")
	}

	job := EmailJob{
		JobID:     uuid.NewString(),
		Recipient: recipient,
		Template:  template,
		Params:    params,
		CreatedAt: p.now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode email job: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id":     job.JobID,
			"template":   template,
			"created_at": job.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return "", errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return "", fmt.Errorf("publish email job: %w", err)
	}
	return job.JobID, nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
