// internal/events/observer.go
package events

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

// BatchObserver turns orchestrator callbacks into bus events.
// Publishing never blocks the orchestrator; dropped events are only logged.
type BatchObserver struct {
	bus    *Bus
	logger *zap.Logger
}

var _ transaction.Observer = (*BatchObserver)(nil)

// NewBatchObserver creates an observer publishing to bus.
func NewBatchObserver(bus *Bus, logger *zap.Logger) *BatchObserver {
	return &BatchObserver{bus: bus, logger: logger.Named("batch_observer")}
}

func (o *BatchObserver) BatchStarted(id uuid.UUID, items int) {
	o.publish(&BatchStartedEvent{
		BaseEvent: newBase(BatchStarted),
		BatchID:   id.String(),
		Items:     items,
	})
}

func (o *BatchObserver) ItemSubmitted(id uuid.UUID, index int, sig solana.Signature) {
	o.publish(&ItemSubmittedEvent{
		BaseEvent: newBase(ItemSubmitted),
		BatchID:   id.String(),
		Index:     index,
		Signature: sig.String(),
	})
}

func (o *BatchObserver) ItemResolved(id uuid.UUID, res transaction.ItemResult) {
	ev := &ItemResolvedEvent{
		BaseEvent:    newBase(ItemResolved),
		BatchID:      id.String(),
		Index:        res.Index,
		Label:        res.Label,
		Outcome:      string(res.Outcome.Kind),
		Source:       string(res.Outcome.Source),
		Slot:         res.Outcome.Slot,
		Rebroadcasts: res.Rebroadcasts,
	}
	if !res.Signature.IsZero() {
		ev.Signature = res.Signature.String()
	}
	if res.SubmitErr != nil {
		ev.Outcome = "submit_failed"
	}
	if res.Outcome.Err != nil {
		ev.ErrorCode = res.Outcome.Err.Code
	}
	if err := res.Err(); err != nil {
		ev.Error = err.Error()
	}
	o.publish(ev)
}

func (o *BatchObserver) BatchCompleted(res *transaction.BatchResult) {
	o.publish(&BatchCompletedEvent{
		BaseEvent:      newBase(BatchCompleted),
		BatchID:        res.ID.String(),
		Classification: string(res.Classification()),
		Submitted:      len(res.Items),
		Successes:      res.Successes(),
		Failures:       res.Failures(),
		BuildFailures:  len(res.BuildFailures),
	})
}

func (o *BatchObserver) publish(ev Event) {
	if err := o.bus.Publish(ev); err != nil {
		o.logger.Debug("Event not published",
			zap.String("event_type", string(ev.Type())),
			zap.Error(err))
	}
}
