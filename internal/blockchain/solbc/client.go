// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain/solbc/rpc"
	"go.uber.org/zap"
)

// Определение ошибок
var (
	ErrAccountNotFound = errors.New("account not found")
)

const accountFetchTries = 3

// Client – тонкий адаптер над solana-go, переводящий ответы сети в типы пакета blockchain.
type Client struct {
	rpc        *rpc.RPCClient
	commitment solanarpc.CommitmentType
	logger     *zap.Logger
}

var (
	_ blockchain.Submitter     = (*Client)(nil)
	_ blockchain.StatusPoller  = (*Client)(nil)
	_ blockchain.AccountReader = (*Client)(nil)
)

// NewClient создаёт клиент поверх пула RPC узлов.
func NewClient(pool *rpc.RPCClient, commitment solanarpc.CommitmentType, logger *zap.Logger) *Client {
	if commitment == "" {
		commitment = solanarpc.CommitmentConfirmed
	}
	return &Client{
		rpc:        pool,
		commitment: commitment,
		logger:     logger.Named("solbc-client"),
	}
}

// SubmitRaw отправляет сериализованную транзакцию. Повторная отправка тех же байт безопасна.
func (c *Client) SubmitRaw(ctx context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error) {
	var sig solana.Signature
	err := c.rpc.ExecuteWithRetry(ctx, "sendTransaction", func(ctx context.Context, node *solanarpc.Client) error {
		var err error
		sig, err = node.SendRawTransactionWithOpts(ctx, raw, solanarpc.TransactionOpts{
			SkipPreflight:       opts.SkipPreflight,
			PreflightCommitment: opts.PreflightCommitment,
		})
		return err
	})
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatus возвращает статус одной подписи; nil, если сеть её ещё не знает.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*blockchain.SignatureStatus, error) {
	var result *solanarpc.GetSignatureStatusesResult
	err := c.rpc.ExecuteWithRetry(ctx, "getSignatureStatuses", func(ctx context.Context, node *solanarpc.Client) error {
		var err error
		result, err = node.GetSignatureStatuses(ctx, false, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Value) == 0 {
		return nil, nil
	}
	return toSignatureStatus(result.Value[0]), nil
}

// LatestBlockhash получает последний blockhash без кеширования.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var result *solanarpc.GetLatestBlockhashResult
	err := c.rpc.ExecuteWithRetry(ctx, "getLatestBlockhash", func(ctx context.Context, node *solanarpc.Client) error {
		var err error
		result, err = node.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty getLatestBlockhash response")
	}
	return result.Value.Blockhash, nil
}

// GetAccountData читает данные аккаунта с экспоненциальным backoff.
// Отсутствие аккаунта не повторяется.
func (c *Client) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	op := func() ([]byte, error) {
		var result *solanarpc.GetAccountInfoResult
		err := c.rpc.ExecuteWithRetry(ctx, "getAccountInfo", func(ctx context.Context, node *solanarpc.Client) error {
			var err error
			result, err = node.GetAccountInfoWithOpts(ctx, account, &solanarpc.GetAccountInfoOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: c.commitment,
			})
			return err
		})
		if errors.Is(err, solanarpc.ErrNotFound) {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrAccountNotFound, account))
		}
		if err != nil {
			return nil, err
		}
		if result == nil || result.Value == nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrAccountNotFound, account))
		}
		return result.GetBinary(), nil
	}

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(accountFetchTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("Retrying account fetch",
				zap.String("account", account.String()),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// MinimumBalanceForRentExemption возвращает минимум lamports для аккаунта размера size.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	err := c.rpc.ExecuteWithRetry(ctx, "getMinimumBalanceForRentExemption", func(ctx context.Context, node *solanarpc.Client) error {
		var err error
		lamports, err = node.GetMinimumBalanceForRentExemption(ctx, size, c.commitment)
		return err
	})
	return lamports, err
}

// GetBalance возвращает баланс аккаунта в lamports.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var result *solanarpc.GetBalanceResult
	err := c.rpc.ExecuteWithRetry(ctx, "getBalance", func(ctx context.Context, node *solanarpc.Client) error {
		var err error
		result, err = node.GetBalance(ctx, account, c.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}
