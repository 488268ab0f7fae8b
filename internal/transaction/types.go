// internal/transaction/types.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
)

// Item один элемент батча: независимый набор инструкций и его эфемерные ключи.
type Item struct {
	Index        int
	Instructions []solana.Instruction
	// Signers эфемерные ключи, которые подписывают транзакцию локально (например, новый mint).
	Signers []solana.PrivateKey
	// Label произвольная метка для отчёта (адрес нового mint и т.п.).
	Label string
}

// BuildResult результат сборки одного элемента: либо Item, либо Err.
type BuildResult struct {
	Index int
	Item  *Item
	Err   error
}

// SignedTransaction подписанная транзакция. Неизменяема после создания.
type SignedTransaction struct {
	index     int
	label     string
	raw       []byte
	signature solana.Signature
	blockhash solana.Hash
}

func (s *SignedTransaction) Index() int { return s.index }
func (s *SignedTransaction) Label() string { return s.label }
func (s *SignedTransaction) Signature() solana.Signature { return s.signature }
func (s *SignedTransaction) Blockhash() solana.Hash { return s.blockhash }

// Raw возвращает копию сериализованных байт.
func (s *SignedTransaction) Raw() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}

// OutcomeKind терминальное состояние одной транзакции.
type OutcomeKind string

const (
	OutcomeConfirmed    OutcomeKind = "confirmed"
	OutcomeProgramError OutcomeKind = "program_error"
	OutcomeTimedOut     OutcomeKind = "timed_out"
	OutcomeChannelError OutcomeKind = "channel_error"
)

// OutcomeSource какой из производителей разрешил ожидание.
type OutcomeSource string

const (
	SourcePush    OutcomeSource = "push"
	SourcePoll    OutcomeSource = "poll"
	SourceTimer   OutcomeSource = "timer"
	SourceContext OutcomeSource = "context"
)

// Outcome итог ожидания подтверждения.
type Outcome struct {
	Kind   OutcomeKind
	Slot   uint64
	Err    *blockchain.TxError
	Source OutcomeSource
	// Cause причина ChannelError.
	Cause error
}

// Succeeded true только для подтверждения без ошибки программы.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeConfirmed
}

// Error переводит неуспешный исход в типизированную ошибку.
func (o Outcome) Error() error {
	switch o.Kind {
	case OutcomeConfirmed:
		return nil
	case OutcomeProgramError:
		return newProgramError(o.Err)
	case OutcomeTimedOut:
		return ErrConfirmationTimeout
	case OutcomeChannelError:
		return &ChannelError{Err: o.Cause}
	default:
		return fmt.Errorf("unknown outcome %q", o.Kind)
	}
}

// ItemResult исход одного элемента, дошедшего до отправки.
type ItemResult struct {
	Index     int
	Label     string
	Signature solana.Signature
	Outcome   Outcome
	// SubmitErr заполнен, если первичная отправка не удалась и отслеживания не было.
	SubmitErr error
	// Rebroadcasts сколько раз байты были переотправлены.
	Rebroadcasts int
}

// Succeeded true, если транзакция подтверждена без ошибки.
func (r ItemResult) Succeeded() bool {
	return r.SubmitErr == nil && r.Outcome.Succeeded()
}

// Err ошибка элемента или nil.
func (r ItemResult) Err() error {
	if r.SubmitErr != nil {
		return r.SubmitErr
	}
	return r.Outcome.Error()
}

// BuildFailure элемент, не дошедший до отправки.
type BuildFailure struct {
	Index int
	Err   error
}

// Classification грубая оценка результата батча.
type Classification string

const (
	AllSucceeded Classification = "all_succeeded"
	Partial      Classification = "partial"
	AllFailed    Classification = "all_failed"
)

// BatchResult результат батча. Items в порядке входа, только отправленные элементы.
type BatchResult struct {
	ID            uuid.UUID
	Items         []ItemResult
	BuildFailures []BuildFailure
}

// Successes число подтверждённых без ошибки элементов.
func (b *BatchResult) Successes() int {
	n := 0
	for _, it := range b.Items {
		if it.Succeeded() {
			n++
		}
	}
	return n
}

// Failures число неуспешных отправленных элементов.
func (b *BatchResult) Failures() int {
	return len(b.Items) - b.Successes()
}

// Classification считается по всем элементам, включая несобранные.
func (b *BatchResult) Classification() Classification {
	ok := b.Successes()
	total := len(b.Items) + len(b.BuildFailures)
	switch {
	case total > 0 && ok == total:
		return AllSucceeded
	case ok == 0:
		return AllFailed
	default:
		return Partial
	}
}
