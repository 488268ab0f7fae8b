// internal/candymachine/state.go
package candymachine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
)

// ErrInvalidAccount данные аккаунта не являются CandyMachine.
var ErrInvalidAccount = errors.New("account is not a candy machine")

// accountDiscriminator первые 8 байт sha256("account:CandyMachine").
var accountDiscriminator = bin.SighashAccount("CandyMachine")

// MachineData вложенная структура data в аккаунте.
type MachineData struct {
	UUID           string
	Price          uint64
	ItemsAvailable uint64
	GoLiveDate     *int64 `bin:"optional"`
}

// MachineAccount borsh-раскладка аккаунта после дискриминатора.
type MachineAccount struct {
	Authority     solana.PublicKey
	Wallet        solana.PublicKey
	TokenMint     *solana.PublicKey `bin:"optional"`
	Config        solana.PublicKey
	Data          MachineData
	ItemsRedeemed uint64
	Bump          uint8
}

// DecodeAccount проверяет дискриминатор и декодирует аккаунт.
func DecodeAccount(data []byte) (*MachineAccount, error) {
	if len(data) < bin.ACCOUNT_DISCRIMINATOR_SIZE {
		return nil, fmt.Errorf("%w: data too short (%d bytes)", ErrInvalidAccount, len(data))
	}
	if !bytes.Equal(data[:bin.ACCOUNT_DISCRIMINATOR_SIZE], accountDiscriminator) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidAccount)
	}
	var acc MachineAccount
	if err := bin.NewBorshDecoder(data[bin.ACCOUNT_DISCRIMINATOR_SIZE:]).Decode(&acc); err != nil {
		return nil, fmt.Errorf("decode candy machine: %w", err)
	}
	return &acc, nil
}

// State снимок состояния автомата, используемый для предварительных проверок и отчёта.
type State struct {
	ID             solana.PublicKey
	Authority      solana.PublicKey
	Wallet         solana.PublicKey
	Config         solana.PublicKey
	TokenMint      *solana.PublicKey
	ItemsAvailable uint64
	ItemsRedeemed  uint64
	ItemsRemaining uint64
	// GoLiveDate nil, если дата не задана.
	GoLiveDate *time.Time
	Price      uint64
}

func newState(id solana.PublicKey, acc *MachineAccount) *State {
	st := &State{
		ID:             id,
		Authority:      acc.Authority,
		Wallet:         acc.Wallet,
		Config:         acc.Config,
		TokenMint:      acc.TokenMint,
		ItemsAvailable: acc.Data.ItemsAvailable,
		ItemsRedeemed:  acc.ItemsRedeemed,
		Price:          acc.Data.Price,
	}
	if acc.Data.ItemsAvailable > acc.ItemsRedeemed {
		st.ItemsRemaining = acc.Data.ItemsAvailable - acc.ItemsRedeemed
	}
	if acc.Data.GoLiveDate != nil {
		t := time.Unix(*acc.Data.GoLiveDate, 0).UTC()
		st.GoLiveDate = &t
	}
	return st
}

// IsSoldOut true, если не осталось ни одного элемента.
func (s *State) IsSoldOut() bool {
	return s.ItemsRemaining == 0
}

// IsLive повторяет правило программы: authority может минтить всегда,
// остальные только после go-live даты. Без даты автомат закрыт для всех, кроме authority.
func (s *State) IsLive(now time.Time, payer solana.PublicKey) bool {
	if payer.Equals(s.Authority) {
		return true
	}
	if s.GoLiveDate == nil {
		return false
	}
	return !now.Before(*s.GoLiveDate)
}

// PriceSOL цена в SOL; только для отображения.
func (s *State) PriceSOL() decimal.Decimal {
	return LamportsToSOL(s.Price)
}

// LamportsToSOL переводит лампорты в SOL без потери точности.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}

// Provider читает состояние автомата через AccountReader.
type Provider struct {
	reader blockchain.AccountReader
	id     solana.PublicKey
	logger *zap.Logger
}

// NewProvider создаёт провайдер состояния для автомата id.
func NewProvider(reader blockchain.AccountReader, id solana.PublicKey, logger *zap.Logger) *Provider {
	return &Provider{
		reader: reader,
		id:     id,
		logger: logger.Named("candy-machine"),
	}
}

// ID адрес автомата.
func (p *Provider) ID() solana.PublicKey {
	return p.id
}

// State загружает и декодирует актуальное состояние.
func (p *Provider) State(ctx context.Context) (*State, error) {
	data, err := p.reader.GetAccountData(ctx, p.id)
	if err != nil {
		return nil, fmt.Errorf("fetch candy machine %s: %w", p.id, err)
	}
	acc, err := DecodeAccount(data)
	if err != nil {
		return nil, err
	}
	st := newState(p.id, acc)
	p.logger.Debug("Candy machine state loaded",
		zap.String("id", p.id.String()),
		zap.Uint64("available", st.ItemsAvailable),
		zap.Uint64("redeemed", st.ItemsRedeemed),
		zap.Uint64("remaining", st.ItemsRemaining))
	return st, nil
}
