// internal/blockchain/solbc/rpc/rpc.go
package rpc

import (
	"context"
	"errors"
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	retryAttempts = 2
	retryDelay    = 500 * time.Millisecond
	reqTimeout    = 10 * time.Second
	// После maxFailures ошибок подряд узел пропускается на nodeCooldown.
	maxFailures  = 3
	nodeCooldown = 5 * time.Second
)

type node struct {
	url       string
	client    *solanarpc.Client
	failures  int
	downUntil time.Time
}

// RPCClient пул RPC узлов с переключением по кругу.
// Один экземпляр разделяется всеми параллельными потоками отправки и опроса.
type RPCClient struct {
	mu      sync.Mutex
	nodes   []*node
	current int
	now     func() time.Time
	logger  *zap.Logger
}

// NewClient создаёт пул из списка URL.
func NewClient(urls []string, logger *zap.Logger) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}
	nodes := make([]*node, len(urls))
	for i, url := range urls {
		nodes[i] = &node{url: url, client: solanarpc.New(url)}
	}
	return &RPCClient{
		nodes:  nodes,
		now:    time.Now,
		logger: logger.Named("rpc-client"),
	}, nil
}

// next выбирает следующий доступный узел по кругу.
// Если все узлы на паузе, берётся тот, чья пауза кончается раньше.
func (c *RPCClient) next() *node {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var fallback *node
	for i := 0; i < len(c.nodes); i++ {
		n := c.nodes[(c.current+i)%len(c.nodes)]
		if !now.Before(n.downUntil) {
			c.current = (c.current + i + 1) % len(c.nodes)
			return n
		}
		if fallback == nil || n.downUntil.Before(fallback.downUntil) {
			fallback = n
		}
	}
	return fallback
}

func (c *RPCClient) report(n *node, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		n.failures = 0
		n.downUntil = time.Time{}
		return
	}
	n.failures++
	if n.failures >= maxFailures {
		n.downUntil = c.now().Add(nodeCooldown)
		c.logger.Warn("RPC node paused after repeated failures",
			zap.String("url", n.url),
			zap.Int("failures", n.failures),
			zap.Duration("cooldown", nodeCooldown))
	}
}

// attempts: каждый узел пробуем хотя бы раз, но не меньше retryAttempts.
func (c *RPCClient) attempts() int {
	return max(len(c.nodes), retryAttempts)
}

// ExecuteWithRetry выполняет запрос, переключая узлы при ошибке.
// Ошибка последней попытки возвращается как *Error.
func (c *RPCClient) ExecuteWithRetry(ctx context.Context, method string, operation func(context.Context, *solanarpc.Client) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, reqTimeout)
	defer cancel()

	var lastErr error
	attempts := c.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if timeoutCtx.Err() != nil {
			return c.timeoutError(ctx, method, lastErr)
		}

		n := c.next()
		err := operation(timeoutCtx, n.client)
		if isFinal(err) {
			return &Error{Err: err, NodeURL: n.url, Method: method, Attempt: attempt}
		}
		c.report(n, err)
		if err == nil {
			return nil
		}
		lastErr = &Error{Err: err, NodeURL: n.url, Method: method, Attempt: attempt}

		c.logger.Debug("RPC request failed",
			zap.String("url", n.url),
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < attempts {
			select {
			case <-timeoutCtx.Done():
				return c.timeoutError(ctx, method, lastErr)
			case <-time.After(retryDelay):
			}
		}
	}

	c.logger.Warn("All RPC attempts failed",
		zap.String("method", method),
		zap.Error(lastErr))
	return lastErr
}

func (c *RPCClient) timeoutError(parent context.Context, method string, lastErr error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if lastErr != nil {
		return errors.Join(ErrTimeout, lastErr)
	}
	return NewError(ErrTimeout, "", method)
}

// Close закрывает HTTP клиенты всех узлов.
func (c *RPCClient) Close() error {
	var errs []error
	for _, n := range c.nodes {
		if err := n.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
