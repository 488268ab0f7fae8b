// internal/transaction/errors.go
package transaction

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
)

var (
	// ErrConfirmationTimeout нет терминального статуса до дедлайна.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
	// ErrNoRecencyToken не удалось получить blockhash для батча.
	ErrNoRecencyToken = errors.New("recency token unavailable")
	// ErrSignDeclined внешний подписант отказался подписывать.
	ErrSignDeclined = errors.New("signer declined")
	// ErrEmptyBatch в батче нет элементов.
	ErrEmptyBatch = errors.New("empty batch")
)

// BuildError сборка одного элемента не удалась; соседние элементы не затронуты.
type BuildError struct {
	Index int
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build item %d: %v", e.Index, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SignError подпись батча не удалась целиком.
type SignError struct {
	Err error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign batch: %v", e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

// SubmitError первичная синхронная отправка не удалась.
type SubmitError struct {
	Index int
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit item %d: %v", e.Index, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// ProgramError сеть подтвердила транзакцию, но программа её отклонила.
type ProgramError struct {
	Kind blockchain.TxErrorKind
	// Code custom код программы, если он есть.
	Code             *uint32
	InstructionIndex int
	TxErr            *blockchain.TxError
}

func newProgramError(txErr *blockchain.TxError) *ProgramError {
	pe := &ProgramError{Kind: blockchain.TxErrorUnknown, InstructionIndex: -1, TxErr: txErr}
	if txErr != nil {
		pe.Kind = txErr.Kind
		pe.Code = txErr.Code
		pe.InstructionIndex = txErr.InstructionIndex
	}
	return pe
}

func (e *ProgramError) Error() string {
	if e.TxErr != nil {
		return fmt.Sprintf("program error: %v", e.TxErr)
	}
	return "program error"
}

// ChannelError транспортная ошибка канала подтверждения.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("confirmation channel: %v", e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
