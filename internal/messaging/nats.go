// Package messaging provides a NATS client wrapper for the gateway's
// committed-effect fan-out. Approved content, submitter outcome notices and
// review-view updates are published here after the core state transition has
// committed; delivery is at-least-once and a failed publish never rolls a
// transition back.
package messaging

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across gateway services.
const (
	// SubjectPublish carries approved content for the public channel.
	SubjectPublish = "channel.publish"

	// SubjectNotify carries outcome notices, + .<submitter_id>.
	SubjectNotify = "notify.submitter"

	// SubjectReview carries review-view updates broadcast to every
	// connected moderator console instance.
	SubjectReview = "review.update"
)

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "gateway",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{conn: nc}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription for cleanup on Close.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// PublishApproved publishes an approved-content payload for the public
// channel.
func (c *Client) PublishApproved(data []byte) error {
	return c.Publish(SubjectPublish, data)
}

// SubscribeApproved subscribes to approved-content payloads. Used by the
// publisher service that delivers to the public channel.
func (c *Client) SubscribeApproved(handler func(data []byte)) error {
	return c.Subscribe(SubjectPublish, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishNotice publishes an outcome notice for a specific submitter.
func (c *Client) PublishNotice(submitterID string, data []byte) error {
	return c.Publish(SubjectNotify+"."+submitterID, data)
}

// SubscribeAllNotices subscribes to outcome notices for every submitter
// using a wildcard subject. Each gateway instance subscribes once and
// delivers to whichever submitters are connected locally.
func (c *Client) SubscribeAllNotices(handler func(submitterID string, data []byte)) error {
	return c.Subscribe(SubjectNotify+".>", func(msg *nats.Msg) {
		submitterID := strings.TrimPrefix(msg.Subject, SubjectNotify+".")
		handler(submitterID, msg.Data)
	})
}

// PublishReviewUpdate broadcasts a review-view update to all gateway
// instances so every moderator console re-renders.
func (c *Client) PublishReviewUpdate(data []byte) error {
	return c.Publish(SubjectReview, data)
}

// SubscribeReviewUpdates subscribes to review-view updates.
func (c *Client) SubscribeReviewUpdates(handler func(data []byte)) error {
	return c.Subscribe(SubjectReview, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.mu.Unlock()

	c.conn.Close()
}
