// internal/transaction/broadcaster.go
package transaction

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"go.uber.org/zap"
)

// Broadcaster отправляет подписанную транзакцию и переотправляет её до подтверждения или таймаута.
type Broadcaster struct {
	submitter blockchain.Submitter
	cfg       Config
	metrics   *Metrics
	logger    *zap.Logger
}

// NewBroadcaster создаёт Broadcaster. metrics может быть nil.
func NewBroadcaster(submitter blockchain.Submitter, cfg Config, metrics *Metrics, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		submitter: submitter,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
		logger:    logger.Named("broadcaster"),
	}
}

// Broadcast фоновая переотправка одной транзакции.
type Broadcast struct {
	signature    solana.Signature
	cancel       context.CancelFunc
	done         chan struct{}
	rebroadcasts atomic.Int32
	stopOnce     sync.Once
}

// Signature идентификатор, который вернула сеть при первой отправке.
func (b *Broadcast) Signature() solana.Signature { return b.signature }

// Rebroadcasts число выполненных переотправок.
func (b *Broadcast) Rebroadcasts() int { return int(b.rebroadcasts.Load()) }

// Done закрывается, когда цикл переотправки завершился.
func (b *Broadcast) Done() <-chan struct{} { return b.done }

// Stop останавливает переотправку и ждёт выхода цикла. Повторные вызовы безопасны.
func (b *Broadcast) Stop() {
	b.stopOnce.Do(b.cancel)
	<-b.done
}

// Start отправляет транзакцию синхронно и запускает цикл переотправки.
// Ошибка первичной отправки возвращается как *SubmitError, цикл в этом случае не стартует.
func (b *Broadcaster) Start(ctx context.Context, stx *SignedTransaction) (*Broadcast, error) {
	opts := blockchain.TransactionOptions{
		SkipPreflight:       b.cfg.SkipPreflight,
		PreflightCommitment: b.cfg.Commitment,
	}

	sig, err := b.submitter.SubmitRaw(ctx, stx.raw, opts)
	if err != nil {
		b.metrics.recordSubmit(false)
		b.logger.Warn("Initial submit failed",
			zap.Int("index", stx.index),
			zap.String("signature", stx.signature.String()),
			zap.Error(err))
		return nil, &SubmitError{Index: stx.index, Err: err}
	}
	b.metrics.recordSubmit(true)

	if sig.IsZero() {
		sig = stx.signature
	} else if sig != stx.signature {
		b.logger.Warn("Network returned unexpected signature",
			zap.String("expected", stx.signature.String()),
			zap.String("got", sig.String()))
	}

	loopCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	bc := &Broadcast{
		signature: sig,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go b.rebroadcast(loopCtx, stx, opts, bc)

	b.logger.Debug("Transaction submitted",
		zap.Int("index", stx.index),
		zap.String("signature", sig.String()))
	return bc, nil
}

func (b *Broadcaster) rebroadcast(ctx context.Context, stx *SignedTransaction, opts blockchain.TransactionOptions, bc *Broadcast) {
	defer close(bc.done)
	defer bc.cancel()

	ticker := time.NewTicker(b.cfg.RebroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			// Ошибки переотправки ожидаемы: сеть дедуплицирует по подписи.
			if _, err := b.submitter.SubmitRaw(ctx, stx.raw, opts); err != nil {
				b.logger.Debug("Rebroadcast rejected",
					zap.String("signature", bc.signature.String()),
					zap.Error(err))
			}
			bc.rebroadcasts.Add(1)
			b.metrics.recordRebroadcast()
		}
	}
}
