// internal/transaction/signer.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Signer внешний подписант fee payer. Ключ плательщика в ядре не хранится.
// SignAll подписывает весь батч за один вызов и возвращает транзакции в том же порядке.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// BatchSigner прикрепляет blockhash, подписывает эфемерными ключами и делегирует подпись плательщика.
type BatchSigner struct {
	logger *zap.Logger
	// mu гарантирует, что подписант не вызывается параллельно сам с собой.
	mu sync.Mutex
}

// NewBatchSigner создаёт подписчика батчей.
func NewBatchSigner(logger *zap.Logger) *BatchSigner {
	return &BatchSigner{logger: logger.Named("batch-signer")}
}

// SignBatch возвращает по одной SignedTransaction на каждый элемент, который удалось скомпилировать.
// Элементы, чьи инструкции не компилируются в транзакцию, возвращаются как BuildFailure.
// Пустой blockhash отсекает Orchestrator до подписи.
// Любая ошибка подписанта даёт *SignError для всего батча.
func (s *BatchSigner) SignBatch(ctx context.Context, items []*Item, blockhash solana.Hash, payer Signer) ([]*SignedTransaction, []BuildFailure, error) {
	if payer == nil {
		return nil, nil, &SignError{Err: errors.New("payer signer is nil")}
	}

	var (
		txs      []*solana.Transaction
		compiled []*Item
		failures []BuildFailure
	)
	for _, item := range items {
		tx, err := compile(item, blockhash, payer.PublicKey())
		if err != nil {
			s.logger.Warn("Item does not compile into a transaction",
				zap.Int("index", item.Index),
				zap.Error(err))
			failures = append(failures, BuildFailure{Index: item.Index, Err: &BuildError{Index: item.Index, Err: err}})
			continue
		}
		txs = append(txs, tx)
		compiled = append(compiled, item)
	}
	if len(txs) == 0 {
		return nil, failures, nil
	}

	signed, err := s.signAll(ctx, payer, txs)
	if err != nil {
		return nil, failures, &SignError{Err: err}
	}

	out := make([]*SignedTransaction, len(signed))
	for i, tx := range signed {
		stx, err := seal(compiled[i], tx, blockhash)
		if err != nil {
			return nil, failures, &SignError{Err: err}
		}
		out[i] = stx
	}

	s.logger.Debug("Batch signed",
		zap.Int("transactions", len(out)),
		zap.String("blockhash", blockhash.String()))
	return out, failures, nil
}

func (s *BatchSigner) signAll(ctx context.Context, payer Signer, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	signed, err := payer.SignAll(ctx, txs)
	if err != nil {
		return nil, err
	}
	if len(signed) != len(txs) {
		return nil, fmt.Errorf("signer returned %d transactions, expected %d", len(signed), len(txs))
	}
	return signed, nil
}

// compile собирает транзакцию и подписывает её эфемерными ключами элемента.
func compile(item *Item, blockhash solana.Hash, payer solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(item.Instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, err
	}
	if len(item.Signers) == 0 {
		return tx, nil
	}

	keys := make(map[solana.PublicKey]*solana.PrivateKey, len(item.Signers))
	for i := range item.Signers {
		key := item.Signers[i]
		keys[key.PublicKey()] = &key
	}
	if _, err := tx.PartialSign(func(pk solana.PublicKey) *solana.PrivateKey {
		return keys[pk]
	}); err != nil {
		return nil, fmt.Errorf("ephemeral sign: %w", err)
	}
	return tx, nil
}

// seal проверяет ответ подписанта и замораживает транзакцию.
func seal(item *Item, tx *solana.Transaction, blockhash solana.Hash) (*SignedTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("item %d: signer returned nil transaction", item.Index)
	}
	if tx.Message.RecentBlockhash != blockhash {
		return nil, fmt.Errorf("item %d: signer changed the blockhash", item.Index)
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("item %d: %w", item.Index, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("item %d: serialize: %w", item.Index, err)
	}
	return &SignedTransaction{
		index:     item.Index,
		label:     item.Label,
		raw:       raw,
		signature: tx.Signatures[0],
		blockhash: blockhash,
	}, nil
}
