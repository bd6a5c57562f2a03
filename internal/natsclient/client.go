// Package natsclient wraps a NATS JetStream connection for event publishing.
package natsclient

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Client publishes messages to NATS JetStream.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to the NATS server at url.
func New(url, clientName string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name(clientName))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &Client{conn: conn, js: js}, nil
}

// Publish sends data to a subject, honoring context cancellation.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}
