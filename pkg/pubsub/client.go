package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notification topic is required")
)

// Client owns the Pub/Sub connection and the single publisher used for
// notification emails. Nothing in this service subscribes.
type Client struct {
	client *gcppubsub.Client
	topic  string

	once sync.Once
	pub  *gcppubsub.Publisher
}

// NewClient connects to Pub/Sub and fails fast when the notification topic
// is missing, so a misconfigured deploy does not silently drop emails.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic, err := topicResourceName(project, cfg.NotificationTopic)
	if err != nil {
		return nil, err
	}

	raw, err := gcppubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// Topic is the fully qualified notification topic name.
func (c *Client) Topic() string {
	return c.topic
}

// NotificationPublisher returns the shared publisher for the notification
// topic. Publishers batch internally, so one per process is enough.
func (c *Client) NotificationPublisher() *gcppubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.once.Do(func() {
		c.pub = c.client.Publisher(c.topic)
	})
	return c.pub
}

// Ping checks that the notification topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
	return nil
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.pub != nil {
		c.pub.Stop()
	}
	return c.client.Close()
}

// topicResourceName accepts either a bare topic id or a full
// projects/<p>/topics/<t> name.
func topicResourceName(projectID, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errNoTopic
	}
	if strings.HasPrefix(topic, "projects/") {
		if !strings.Contains(topic, "/topics/") {
			return "", fmt.Errorf("malformed topic resource name %q", topic)
		}
		return topic, nil
	}
	if strings.ContainsAny(topic, "/ ") {
		return "", fmt.Errorf("invalid topic id %q", topic)
	}
	return "projects/" + projectID + "/topics/" + topic, nil
}
