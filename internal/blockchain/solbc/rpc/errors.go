// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrNoRPCNodes список узлов пуст.
	ErrNoRPCNodes = errors.New("no RPC nodes available")
	// ErrTimeout запрос не уложился в reqTimeout.
	ErrTimeout = errors.New("request timeout")
)

// Error ошибка конкретного узла с методом и номером попытки.
type Error struct {
	Err     error
	NodeURL string
	Method  string
	Attempt int
}

func (e *Error) Error() string {
	if e.NodeURL == "" {
		return fmt.Sprintf("%s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s via %s (attempt %d): %v", e.Method, e.NodeURL, e.Attempt, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError оборачивает ошибку узла.
func NewError(err error, nodeURL, method string) error {
	return &Error{Err: err, NodeURL: nodeURL, Method: method}
}

// isFinal ошибки, которые другой узел не исправит: отмена и отсутствие аккаунта.
func isFinal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, solanarpc.ErrNotFound)
}
