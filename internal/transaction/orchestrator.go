// internal/transaction/orchestrator.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errEmptyBlockhash = errors.New("empty blockhash")

// Observer получает уведомления о ходе батча. Вызовы не должны блокировать.
type Observer interface {
	BatchStarted(id uuid.UUID, items int)
	ItemSubmitted(id uuid.UUID, index int, sig solana.Signature)
	ItemResolved(id uuid.UUID, res ItemResult)
	BatchCompleted(res *BatchResult)
}

// Orchestrator проводит батч через подпись, отправку и подтверждение.
// Это единственная точка, где элементы рассматриваются как батч.
type Orchestrator struct {
	blockhash   blockchain.BlockhashProvider
	signer      *BatchSigner
	broadcaster *Broadcaster
	tracker     *Tracker
	observer    Observer
	metrics     *Metrics
	logger      *zap.Logger
}

// NewOrchestrator создаёт оркестратор. metrics может быть nil.
func NewOrchestrator(
	blockhash blockchain.BlockhashProvider,
	signer *BatchSigner,
	broadcaster *Broadcaster,
	tracker *Tracker,
	metrics *Metrics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		blockhash:   blockhash,
		signer:      signer,
		broadcaster: broadcaster,
		tracker:     tracker,
		observer:    nopObserver{},
		metrics:     metrics,
		logger:      logger.Named("orchestrator"),
	}
}

// SetObserver подключает наблюдателя за ходом батча.
func (o *Orchestrator) SetObserver(obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	o.observer = obs
}

// Execute подписывает собранные элементы одним вызовом подписанта и параллельно
// отслеживает каждую транзакцию. Ошибка возвращается только для *SignError и пустого батча;
// всё остальное остаётся в BatchResult.
func (o *Orchestrator) Execute(ctx context.Context, built []BuildResult, payer Signer) (*BatchResult, error) {
	if len(built) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &BatchResult{ID: uuid.New()}
	log := o.logger.With(zap.String("batch_id", result.ID.String()))
	start := time.Now()

	items := make([]*Item, 0, len(built))
	for _, b := range built {
		if b.Err != nil || b.Item == nil {
			err := b.Err
			if err == nil {
				err = &BuildError{Index: b.Index, Err: fmt.Errorf("item missing")}
			}
			result.BuildFailures = append(result.BuildFailures, BuildFailure{Index: b.Index, Err: err})
			continue
		}
		items = append(items, b.Item)
	}
	o.observer.BatchStarted(result.ID, len(built))
	log.Info("Batch started",
		zap.Int("requested", len(built)),
		zap.Int("built", len(items)),
		zap.Int("build_failures", len(result.BuildFailures)))

	if len(items) == 0 {
		return o.finish(result, log, start), nil
	}

	hash, err := o.blockhash.LatestBlockhash(ctx)
	if err == nil && hash == (solana.Hash{}) {
		err = errEmptyBlockhash
	}
	if err != nil {
		log.Error("Cannot fetch recency token, no item will be submitted", zap.Error(err))
		for _, item := range items {
			result.BuildFailures = append(result.BuildFailures, BuildFailure{
				Index: item.Index,
				Err:   &BuildError{Index: item.Index, Err: fmt.Errorf("%w: %v", ErrNoRecencyToken, err)},
			})
		}
		return o.finish(result, log, start), nil
	}

	signed, rejected, err := o.signer.SignBatch(ctx, items, hash, payer)
	result.BuildFailures = append(result.BuildFailures, rejected...)
	if err != nil {
		log.Error("Batch signing failed", zap.Error(err))
		// Наблюдатели всё равно получают BatchCompleted; вызывающему возвращается только ошибка.
		failed := make(map[int]bool, len(rejected))
		for _, bf := range rejected {
			failed[bf.Index] = true
		}
		for _, item := range items {
			if !failed[item.Index] {
				result.BuildFailures = append(result.BuildFailures, BuildFailure{Index: item.Index, Err: err})
			}
		}
		o.finish(result, log, start)
		return nil, err
	}

	result.Items = make([]ItemResult, len(signed))
	var g errgroup.Group
	for i, stx := range signed {
		g.Go(func() error {
			result.Items[i] = o.runItem(ctx, result.ID, stx, log)
			return nil
		})
	}
	_ = g.Wait()

	if allTimedOut(result.Items) {
		if inv, ok := o.blockhash.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
	return o.finish(result, log, start), nil
}

// runItem отправка и ожидание одного элемента; никогда не влияет на соседей.
func (o *Orchestrator) runItem(ctx context.Context, batchID uuid.UUID, stx *SignedTransaction, log *zap.Logger) ItemResult {
	res := ItemResult{Index: stx.Index(), Label: stx.Label(), Signature: stx.Signature()}

	bc, err := o.broadcaster.Start(ctx, stx)
	if err != nil {
		res.SubmitErr = err
		o.observer.ItemResolved(batchID, res)
		return res
	}
	res.Signature = bc.Signature()
	o.observer.ItemSubmitted(batchID, res.Index, res.Signature)

	res.Outcome = o.tracker.Await(ctx, bc.Signature())
	bc.Stop()
	res.Rebroadcasts = bc.Rebroadcasts()

	log.Info("Item resolved",
		zap.Int("index", res.Index),
		zap.String("signature", res.Signature.String()),
		zap.String("outcome", string(res.Outcome.Kind)),
		zap.Int("rebroadcasts", res.Rebroadcasts))
	o.observer.ItemResolved(batchID, res)
	return res
}

func (o *Orchestrator) finish(result *BatchResult, log *zap.Logger, start time.Time) *BatchResult {
	sort.Slice(result.BuildFailures, func(i, j int) bool {
		return result.BuildFailures[i].Index < result.BuildFailures[j].Index
	})
	class := result.Classification()
	o.metrics.recordBatch(class)
	o.observer.BatchCompleted(result)

	log.Info("Batch completed",
		zap.String("classification", string(class)),
		zap.Int("submitted", len(result.Items)),
		zap.Int("successes", result.Successes()),
		zap.Int("failures", result.Failures()),
		zap.Int("build_failures", len(result.BuildFailures)),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func allTimedOut(items []ItemResult) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.SubmitErr != nil || it.Outcome.Kind != OutcomeTimedOut {
			return false
		}
	}
	return true
}

type nopObserver struct{}

func (nopObserver) BatchStarted(uuid.UUID, int) {}
func (nopObserver) ItemSubmitted(uuid.UUID, int, solana.Signature) {}
func (nopObserver) ItemResolved(uuid.UUID, ItemResult) {}
func (nopObserver) BatchCompleted(*BatchResult) {}
