package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "proj-1"}
	cases := map[string]string{
		"":                                  "",
		"lifecycle":                         "projects/proj-1/topics/lifecycle",
		" lifecycle ":                       "projects/proj-1/topics/lifecycle",
		"projects/other/topics/lifecycle-x": "projects/other/topics/lifecycle-x",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := (&Client{}).topicResourceName("lifecycle"); got != "" {
		t.Fatalf("short name without project should not resolve, got %q", got)
	}

	var nilClient *Client
	if got := nilClient.topicResourceName("x"); got != "" {
		t.Fatalf("nil client should return empty name, got %q", got)
	}
	if nilClient.LifecyclePublisher() != nil {
		t.Fatalf("nil client should return nil publisher")
	}
	if err := nilClient.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{LifecycleTopic: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{LifecycleTopic: " "}, nil); !errors.Is(err, errNoTopic) {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestClientOptionsPrefersInlineCredentials(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{}`, ApplicationCredentials: "/tmp/creds"}); len(opts) != 1 {
		t.Fatalf("expected one credentials option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}); len(opts) != 1 {
		t.Fatalf("expected file credentials option, got %d", len(opts))
	}
}
