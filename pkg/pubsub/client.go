package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub lifecycle topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection used to relay lifecycle events.
type Client struct {
	client    *pubsub.Client
	projectID string
	topic     string
}

// NewClient connects to Pub/Sub and fails when the lifecycle topic is missing.
// Topics are provisioned out of band; the relay never creates them.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.LifecycleTopic) == "" {
		return nil, errNoTopic
	}

	conn, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: conn, projectID: projectID, topic: cfg.LifecycleTopic}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topicResourceName(c.topic)), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// LifecyclePublisher returns the publisher for order and delivery events.
func (c *Client) LifecyclePublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.topicResourceName(c.topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// Ping confirms the lifecycle topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	name := c.topicResourceName(c.topic)
	if name == "" {
		return errNoTopic
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("topic %s does not exist", name)
	default:
		return fmt.Errorf("get topic %s: %w", name, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// topicResourceName expands a short topic id to projects/<id>/topics/<name>.
// Full resource names pass through unchanged.
func (c *Client) topicResourceName(name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/topics/" + name
}
