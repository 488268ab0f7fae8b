// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet кошелёк плательщика. Ключ не покидает структуру: наружу доступна только подпись.
type Wallet struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return fromBytes(privateKeyBytes)
}

// LoadKeypairFile читает ключ в формате solana-keygen (JSON массив из 64 байт)
// или base58 строку.
func LoadKeypairFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return NewWallet(trimmed)
	}
	// []byte из JSON ожидает base64, поэтому читаем массив чисел
	var nums []int
	if err := json.Unmarshal([]byte(trimmed), &nums); err != nil {
		return nil, fmt.Errorf("failed to parse keypair file: %w", err)
	}
	raw := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, n)
		}
		raw[i] = byte(n)
	}
	return fromBytes(raw)
}

func fromBytes(b []byte) (*Wallet, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(b))
	}
	privateKey := solana.PrivateKey(b)
	return &Wallet{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// PublicKey адрес кошелька.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.publicKey
}

// SignAll добавляет подпись кошелька ко всем транзакциям.
// Уже стоящие подписи эфемерных ключей сохраняются.
func (w *Wallet) SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, errors.New("nil transaction")
		}
		if _, err := tx.PartialSign(w.keyGetter); err != nil {
			return nil, fmt.Errorf("sign transaction %d: %w", i, err)
		}
	}
	return txs, nil
}

func (w *Wallet) keyGetter(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(w.publicKey) {
		return &w.privateKey
	}
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.publicKey.String()
}
