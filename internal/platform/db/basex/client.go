package basex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ogurasousui/basex-empresa/internal/platform/config"
)

type connectFunc func(ctx context.Context) (*Session, error)

// Client は 1 本の Session を保持し、通信失敗で壊れた Session を次の呼び出しで接続し直します。
//
// 失敗した呼び出しそのものは再試行されません。
type Client struct {
	mu      sync.Mutex
	connect connectFunc
	session *Session
	closed  bool
}

// NewClient はストアに接続し、データベースを開いた Client を返します。
func NewClient(ctx context.Context, cfg config.StoreConfig) (*Client, error) {
	return newClient(ctx, func(ctx context.Context) (*Session, error) {
		return Connect(ctx, cfg)
	})
}

func newClient(ctx context.Context, connect connectFunc) (*Client, error) {
	s, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{connect: connect, session: s}, nil
}

// Evaluate は現在の Session でクエリを評価します。
func (c *Client) Evaluate(ctx context.Context, query string) (string, error) {
	s, err := c.current(ctx)
	if err != nil {
		return "", err
	}
	return s.Evaluate(ctx, query)
}

func (c *Client) current(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.session != nil && !c.session.Broken() {
		return c.session, nil
	}
	if c.session != nil {
		_ = c.session.Close(ctx)
		c.session = nil
	}

	s, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("basex: reconnect: %w", err)
	}
	c.session = s
	return s, nil
}

// Close は Session を閉じます。以降の Evaluate は ErrClosed を返します。
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.session == nil {
		return nil
	}
	err := c.session.Close(ctx)
	c.session = nil
	return err
}
