// Package pubsub wraps the Pub/Sub v2 client: it resolves short topic and
// subscription ids to resource names and refuses to start when the resources
// a process depends on are missing.
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

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Role selects which resources NewClient verifies.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	// topics and subscriptions hold the full resource names checked on startup
	// and by Ping.
	topics        []string
	subscriptions []string
}

// NewClient dials Pub/Sub and verifies the orders topic, plus the analytics
// subscription for subscribers. PUBSUB_EMULATOR_HOST is honored by the library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	raw, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}

	c := &Client{client: raw, projectID: project, cfg: cfg}
	c.topics = compact(c.topicName(cfg.OrdersTopic))
	if role == RoleSubscriber {
		c.subscriptions = compact(c.subscriptionName(cfg.AnalyticsSubscription))
	}
	if len(c.topics) == 0 {
		_ = raw.Close()
		return nil, errors.New("orders topic not configured")
	}
	if err := c.verify(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       project,
			"topics":        strings.Join(c.topics, ","),
			"subscriptions": strings.Join(c.subscriptions, ","),
		}), "pubsub client ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) verify(ctx context.Context) error {
	for _, topic := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		if err := missing("topic", topic, err); err != nil {
			return err
		}
	}
	for _, sub := range c.subscriptions {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
		if err := missing("subscription", sub, err); err != nil {
			return err
		}
	}
	return nil
}

func missing(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %s does not exist", kind, name)
	default:
		return fmt.Errorf("check %s %s: %w", kind, name, err)
	}
}

// Subscription returns a subscriber for an id or full resource name, tuned
// with the configured flow control.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.subscriptionName(name)
	if full == "" {
		return nil
	}
	sub := c.client.Subscriber(full)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	if c.cfg.ReceiveGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.ReceiveGoroutines
	}
	return sub
}

// AnalyticsSubscription feeds the order analytics worker.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for an id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicName(name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Ping re-checks that the startup resources still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicName(name string) string {
	return c.resourceName("topics", name)
}

func (c *Client) subscriptionName(name string) string {
	return c.resourceName("subscriptions", name)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Full names of
// the same kind pass through so resources in other projects can be used.
func (c *Client) resourceName(kind, name string) string {
	id := strings.TrimSpace(name)
	if c == nil || id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + id
}

func compact(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
