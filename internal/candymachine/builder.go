// internal/candymachine/builder.go
package candymachine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

// ErrTokenPayment автомат с оплатой SPL токеном не поддерживается.
var ErrTokenPayment = errors.New("candy machines priced in an SPL token are not supported")

// MintFactory строит по одному элементу батча на каждый минт.
// Каждый элемент получает свой новый mint keypair.
type MintFactory struct {
	reader   blockchain.AccountReader
	state    *State
	payer    solana.PublicKey
	treasury solana.PublicKey
	logger   *zap.Logger

	rentMu sync.Mutex
	rent   uint64
}

// NewMintFactory создаёт фабрику. Если treasury нулевой, используется wallet автомата.
func NewMintFactory(
	reader blockchain.AccountReader,
	state *State,
	payer solana.PublicKey,
	treasury solana.PublicKey,
	logger *zap.Logger,
) (*MintFactory, error) {
	if state == nil {
		return nil, errors.New("candy machine state is required")
	}
	if state.TokenMint != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenPayment, state.TokenMint)
	}
	if treasury.IsZero() {
		treasury = state.Wallet
	}
	return &MintFactory{
		reader:   reader,
		state:    state,
		payer:    payer,
		treasury: treasury,
		logger:   logger.Named("mint-factory"),
	}, nil
}

var _ transaction.ItemFactory = (*MintFactory)(nil)

// BuildItem собирает createAccount, initializeMint, create ATA, mintTo и mint_nft.
func (f *MintFactory) BuildItem(ctx context.Context, index int) (*transaction.Item, error) {
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint keypair: %w", err)
	}
	mintKey := mint.PublicKey()

	rent, err := f.mintRent(ctx)
	if err != nil {
		return nil, err
	}

	createIx, err := system.NewCreateAccountInstruction(
		rent, token.MINT_SIZE, solana.TokenProgramID, f.payer, mintKey,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("create mint account instruction: %w", err)
	}

	initIx, err := token.NewInitializeMintInstruction(
		0, f.payer, f.payer, mintKey, solana.SysVarRentPubkey,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("initialize mint instruction: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(f.payer, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}
	ataIx := associatedtokenaccount.NewCreateInstruction(f.payer, f.payer, mintKey).Build()

	mintToIx, err := token.NewMintToInstruction(1, mintKey, ata, f.payer, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("mint to instruction: %w", err)
	}

	metadata, err := FindMetadataAddress(mintKey)
	if err != nil {
		return nil, err
	}
	masterEdition, err := FindMasterEditionAddress(mintKey)
	if err != nil {
		return nil, err
	}
	mintNftIx := BuildMintNftInstruction(MintNftAccounts{
		Config:        f.state.Config,
		CandyMachine:  f.state.ID,
		Payer:         f.payer,
		Treasury:      f.treasury,
		Mint:          mintKey,
		Metadata:      metadata,
		MasterEdition: masterEdition,
	})

	f.logger.Debug("Mint item built",
		zap.Int("index", index),
		zap.String("mint", mintKey.String()),
		zap.String("token_account", ata.String()))

	return &transaction.Item{
		Index:        index,
		Instructions: []solana.Instruction{createIx, initIx, ataIx, mintToIx, mintNftIx},
		Signers:      []solana.PrivateKey{mint},
		Label:        mintKey.String(),
	}, nil
}

// mintRent кэширует минимальный баланс для mint аккаунта; значение одинаково для всех элементов.
func (f *MintFactory) mintRent(ctx context.Context) (uint64, error) {
	f.rentMu.Lock()
	defer f.rentMu.Unlock()
	if f.rent != 0 {
		return f.rent, nil
	}
	rent, err := f.reader.MinimumBalanceForRentExemption(ctx, token.MINT_SIZE)
	if err != nil {
		return 0, fmt.Errorf("rent exemption for mint: %w", err)
	}
	f.rent = rent
	return rent, nil
}
