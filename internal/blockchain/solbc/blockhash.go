// internal/blockchain/solbc/blockhash.go
package solbc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"go.uber.org/zap"
)

const (
	blockhashKey        = "latest"
	blockhashFetchTries = 3
	// DefaultBlockhashTTL заметно меньше горизонта жизни blockhash (~60-90 секунд).
	DefaultBlockhashTTL = 20 * time.Second
)

// BlockhashCache кеширует последний blockhash на короткий TTL.
// Батчи, собранные подряд, переиспользуют один токен вместо лишнего запроса.
type BlockhashCache struct {
	source blockchain.BlockhashProvider
	cache  *expirable.LRU[string, solana.Hash]
	logger *zap.Logger
}

var _ blockchain.BlockhashProvider = (*BlockhashCache)(nil)

// NewBlockhashCache оборачивает source. ttl <= 0 означает DefaultBlockhashTTL.
func NewBlockhashCache(source blockchain.BlockhashProvider, ttl time.Duration, logger *zap.Logger) *BlockhashCache {
	if ttl <= 0 {
		ttl = DefaultBlockhashTTL
	}
	return &BlockhashCache{
		source: source,
		cache:  expirable.NewLRU[string, solana.Hash](1, nil, ttl),
		logger: logger.Named("blockhash-cache"),
	}
}

// LatestBlockhash отдаёт закешированный blockhash или запрашивает новый с backoff.
func (b *BlockhashCache) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if hash, ok := b.cache.Get(blockhashKey); ok {
		return hash, nil
	}

	hash, err := backoff.Retry(ctx, func() (solana.Hash, error) {
		return b.source.LatestBlockhash(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(blockhashFetchTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.logger.Debug("Retrying blockhash fetch", zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		return solana.Hash{}, err
	}

	b.cache.Add(blockhashKey, hash)
	b.logger.Debug("Fetched blockhash", zap.String("blockhash", hash.String()))
	return hash, nil
}

// Invalidate сбрасывает кеш, например после истечения токена.
func (b *BlockhashCache) Invalidate() {
	b.cache.Remove(blockhashKey)
}
