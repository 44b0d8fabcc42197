package mongo

import (
	"context"
	"time"

	md "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB  *md.Database
	cli *md.Client
}

func NewClient(ctx context.Context, uri, db string) (*Client, error) {
	c, err := md.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx2, nil); err != nil {
		return nil, err
	}
	return &Client{DB: c.Database(db), cli: c}, nil
}

func (c *Client) Close(ctx context.Context) error { return c.cli.Disconnect(ctx) }

// Ping verifies the connection is still alive, used by the worker health
// surface (internal/monitoring).
func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx, nil) }

// WithTransaction runs fn inside a single-writer-per-ladder critical
// section backed by a Mongo session transaction (§5). fn's return value
// is propagated back to the caller; any error aborts the transaction.
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx md.SessionContext) (interface{}, error)) (interface{}, error) {
	sess, err := c.cli.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	return sess.WithTransaction(ctx, fn)
}
