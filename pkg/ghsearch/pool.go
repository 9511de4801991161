package ghsearch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultAcquireTimeout bounds how long Acquire waits for a free client.
const DefaultAcquireTimeout = 30 * time.Second

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("client pool is closed")

// Pool hands out independent rate-limited clients to range-fetch workers.
// Each client is used by one worker at a time; every client throttles its own
// search path, so n workers stay within n× the per-client search rate.
type Pool struct {
	clients chan *Client
	timeout time.Duration
	done    chan struct{}
}

// NewPool builds size clients with the factory and fills the pool.
func NewPool(size int, factory func() (*Client, error)) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	pool := &Pool{
		clients: make(chan *Client, size),
		timeout: DefaultAcquireTimeout,
		done:    make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		client, err := factory()
		if err != nil {
			return nil, fmt.Errorf("build pool client %d: %w", i, err)
		}

		pool.clients <- client
	}

	return pool, nil
}

// Acquire returns a free client, waiting up to the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*Client, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case client := <-p.clients:
		return client, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("acquire client: timed out after %s", p.timeout)
	}
}

// Release returns a client to the pool.
func (p *Pool) Release(client *Client) {
	select {
	case p.clients <- client:
	case <-p.done:
	}
}

// With runs fn with an acquired client, releasing it afterwards.
func (p *Pool) With(ctx context.Context, fn func(*Client) error) error {
	client, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(client)

	return fn(client)
}

// Close stops the pool. Waiting Acquire calls fail with ErrPoolClosed.
func (p *Pool) Close() {
	close(p.done)
}
