// internal/blockchain/types.go
package blockchain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// TxErrorKind классифицирует ошибку, которую сеть вернула для транзакции.
type TxErrorKind string

const (
	// TxErrorInstruction: программа отклонила одну из инструкций.
	TxErrorInstruction TxErrorKind = "InstructionError"
	// TxErrorUnknown: форма ошибки не распознана, исходные данные лежат в Raw.
	TxErrorUnknown TxErrorKind = "Unknown"
)

// TxError типизированная ошибка транзакции, полученная от сети.
// Code заполняется только для Custom ошибок программы.
type TxError struct {
	Kind             TxErrorKind
	InstructionIndex int
	Code             *uint32
	Detail           string
	Raw              string
}

func (e *TxError) Error() string {
	switch {
	case e.Code != nil:
		return fmt.Sprintf("%s at instruction %d: custom program error 0x%x", e.Kind, e.InstructionIndex, *e.Code)
	case e.Detail != "":
		return fmt.Sprintf("%s at instruction %d: %s", e.Kind, e.InstructionIndex, e.Detail)
	case e.Raw != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Raw)
	default:
		return string(e.Kind)
	}
}

// SignatureStatus типизированный статус подписи из getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                *TxError
}

// IsConfirmed сообщает, видит ли сеть транзакцию как подтверждённую.
// Confirmations == nil при статусе finalized, поэтому учитываем и его.
func (s *SignatureStatus) IsConfirmed() bool {
	if s == nil {
		return false
	}
	if s.Confirmations != nil && *s.Confirmations > 0 {
		return true
	}
	return s.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		s.ConfirmationStatus == rpc.ConfirmationStatusFinalized
}

// SignatureNotification уведомление из signatureSubscribe.
type SignatureNotification struct {
	Slot uint64
	Err  *TxError
}

// SignatureSubscription подписка на одну подпись. Unsubscribe можно вызывать повторно.
type SignatureSubscription interface {
	Recv(ctx context.Context) (*SignatureNotification, error)
	Unsubscribe()
}

// Submitter отправляет уже сериализованную транзакцию.
type Submitter interface {
	SubmitRaw(ctx context.Context, raw []byte, opts TransactionOptions) (solana.Signature, error)
}

// StatusPoller возвращает статус подписи или nil, если сеть её ещё не видела.
type StatusPoller interface {
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
}

// SignatureSubscriber открывает push-подписку на подпись.
type SignatureSubscriber interface {
	SubscribeSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (SignatureSubscription, error)
}

// BlockhashProvider отдаёт актуальный blockhash для подписи батча.
type BlockhashProvider interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// AccountReader читает сырые данные аккаунтов и вспомогательные значения сети.
type AccountReader interface {
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}
