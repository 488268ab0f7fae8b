// internal/transaction/tracker.go
package transaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"go.uber.org/zap"
)

// pendingOutcome одноразово разрешаемое ожидание.
// Первый settle фиксирует исход и запускает все зарегистрированные teardown функции.
type pendingOutcome struct {
	mu       sync.Mutex
	settled  bool
	outcome  Outcome
	teardown []func()
	done     chan struct{}
}

func newPendingOutcome() *pendingOutcome {
	return &pendingOutcome{done: make(chan struct{})}
}

// settle возвращает false, если исход уже был зафиксирован.
func (p *pendingOutcome) settle(o Outcome) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.outcome = o
	fns := p.teardown
	p.teardown = nil
	close(p.done)
	p.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
	return true
}

// onSettle регистрирует teardown. Если исход уже есть, fn вызывается сразу.
func (p *pendingOutcome) onSettle(fn func()) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		fn()
		return
	}
	p.teardown = append(p.teardown, fn)
	p.mu.Unlock()
}

func (p *pendingOutcome) wait() Outcome {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// Tracker определяет терминальный исход отправленной транзакции,
// соревнуя push-подписку, опрос статуса и таймер.
type Tracker struct {
	subscriber blockchain.SignatureSubscriber
	poller     blockchain.StatusPoller
	cfg        Config
	metrics    *Metrics
	logger     *zap.Logger
}

// NewTracker создаёт Tracker. subscriber или poller могут быть nil, если канал не используется.
func NewTracker(subscriber blockchain.SignatureSubscriber, poller blockchain.StatusPoller, cfg Config, metrics *Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{
		subscriber: subscriber,
		poller:     poller,
		cfg:        cfg.withDefaults(),
		metrics:    metrics,
		logger:     logger.Named("tracker"),
	}
}

// Await блокируется до терминального исхода и всегда возвращает ровно один Outcome.
// Отмена ctx даёт TimedOut с источником SourceContext.
func (t *Tracker) Await(ctx context.Context, sig solana.Signature) Outcome {
	start := time.Now()
	log := t.logger.With(zap.String("signature", sig.String()))
	poll := t.cfg.Poll && t.poller != nil

	runCtx, cancel := context.WithCancel(ctx)
	p := newPendingOutcome()
	p.onSettle(cancel)

	timer := time.AfterFunc(t.cfg.Timeout, func() {
		p.settle(Outcome{Kind: OutcomeTimedOut, Source: SourceTimer})
	})
	p.onSettle(func() { timer.Stop() })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			p.settle(Outcome{Kind: OutcomeTimedOut, Source: SourceContext})
		case <-p.done:
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		t.listen(runCtx, sig, p, poll, log)
	}()

	if poll {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.poll(runCtx, sig, p, log)
		}()
	}

	outcome := p.wait()
	wg.Wait()

	t.metrics.recordOutcome(outcome, time.Since(start))
	log.Debug("Confirmation resolved",
		zap.String("kind", string(outcome.Kind)),
		zap.String("source", string(outcome.Source)),
		zap.Uint64("slot", outcome.Slot),
		zap.Duration("elapsed", time.Since(start)))
	return outcome
}

// listen ждёт первое push-уведомление. Без опроса ошибка канала терминальна.
func (t *Tracker) listen(ctx context.Context, sig solana.Signature, p *pendingOutcome, poll bool, log *zap.Logger) {
	channelFailed := func(err error) {
		if ctx.Err() != nil {
			return
		}
		t.metrics.recordChannelError()
		if poll {
			log.Warn("Push channel unavailable, relying on polling", zap.Error(err))
			return
		}
		log.Warn("Push channel failed", zap.Error(err))
		p.settle(Outcome{Kind: OutcomeChannelError, Source: SourcePush, Cause: err})
	}

	if t.subscriber == nil {
		channelFailed(errors.New("no signature subscriber configured"))
		return
	}

	sub, err := t.subscriber.SubscribeSignature(ctx, sig, t.cfg.Commitment)
	if err != nil {
		channelFailed(err)
		return
	}
	p.onSettle(sub.Unsubscribe)

	for {
		n, err := sub.Recv(ctx)
		if err != nil {
			channelFailed(err)
			return
		}
		if n == nil {
			continue
		}
		p.settle(notificationOutcome(n.Slot, n.Err, SourcePush))
		return
	}
}

// poll опрашивает статус подписи. Транспортные ошибки логируются и повторяются.
func (t *Tracker) poll(ctx context.Context, sig solana.Signature, p *pendingOutcome, log *zap.Logger) {
	for {
		status, err := t.poller.GetSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Debug("Status poll failed", zap.Error(err))
		case status == nil:
		case status.Err != nil:
			p.settle(notificationOutcome(status.Slot, status.Err, SourcePoll))
			return
		case status.IsConfirmed():
			p.settle(notificationOutcome(status.Slot, nil, SourcePoll))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(t.cfg.PollInterval):
		}
	}
}

func notificationOutcome(slot uint64, txErr *blockchain.TxError, source OutcomeSource) Outcome {
	if txErr != nil {
		return Outcome{Kind: OutcomeProgramError, Slot: slot, Err: txErr, Source: source}
	}
	return Outcome{Kind: OutcomeConfirmed, Slot: slot, Source: source}
}
