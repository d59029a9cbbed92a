// Package pubsub wraps the Cloud Pub/Sub v2 client with resource-name
// handling and existence checks for the topics and subscriptions a process
// depends on.
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

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var errNotInitialized = errors.New("pubsub client not initialized")

type resource struct {
	kind string
	name string
}

// Option declares a resource the process cannot run without. NewClient and
// Ping fail while any of them is missing.
type Option func(*Client)

func RequireTopics(names ...string) Option {
	return func(c *Client) { c.require(kindTopic, names) }
}

func RequireSubscriptions(names ...string) Option {
	return func(c *Client) { c.require(kindSubscription, names) }
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []resource
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	raw, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "required_resources", len(c.required)), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

func (c *Client) require(kind string, names []string) {
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			c.required = append(c.required, resource{kind: kind, name: name})
		}
	}
}

// Ping confirms every required topic and subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, res := range c.required {
		if err := c.exists(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) exists(ctx context.Context, res resource) error {
	full := resourceName(c.projectID, res.kind, res.name)
	var err error
	switch res.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	default:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(res.kind, "s"), full)
	default:
		return fmt.Errorf("checking %s: %w", full, err)
	}
}

// Subscription accepts a bare ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher accepts a bare topic ID or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
