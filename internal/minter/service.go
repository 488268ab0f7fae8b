// internal/minter/service.go
package minter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/candy-mint/internal/access"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"github.com/rovshanmuradov/candy-mint/internal/candymachine"
	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

var (
	// ErrNotAuthorized is returned when the access policy denies the payer.
	ErrNotAuthorized = errors.New(access.DeniedReason)
	// ErrSoldOut is returned when no items remain.
	ErrSoldOut = errors.New("candy machine is sold out")
	// ErrNotLive is returned before the machine's go-live date.
	ErrNotLive = errors.New("minting period has not started yet")
)

// StateProvider reads the current candy machine state.
type StateProvider interface {
	State(ctx context.Context) (*candymachine.State, error)
}

// Executor runs a built batch to completion.
type Executor interface {
	Execute(ctx context.Context, built []transaction.BuildResult, payer transaction.Signer) (*transaction.BatchResult, error)
}

// Options tune a Service.
type Options struct {
	// Treasury overrides the machine wallet as the mint_nft payment recipient.
	Treasury         solana.PublicKey
	BuildConcurrency int
	Catalog          *candymachine.ErrorCatalog
	// Now is the clock used for access and go-live checks.
	Now func() time.Time
}

// Service mints a batch of NFTs from one candy machine.
type Service struct {
	policy   *access.Policy
	state    StateProvider
	reader   blockchain.AccountReader
	executor Executor
	payer    transaction.Signer
	opts     Options
	logger   *zap.Logger
}

// NewService wires the mint pipeline. A nil policy admits everyone.
func NewService(
	policy *access.Policy,
	state StateProvider,
	reader blockchain.AccountReader,
	executor Executor,
	payer transaction.Signer,
	opts Options,
	logger *zap.Logger,
) *Service {
	if policy == nil {
		policy = access.OpenPolicy()
	}
	if opts.Catalog == nil {
		opts.Catalog = candymachine.DefaultErrorCatalog()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BuildConcurrency <= 0 {
		opts.BuildConcurrency = transaction.DefaultBuildConcurrency
	}
	return &Service{
		policy:   policy,
		state:    state,
		reader:   reader,
		executor: executor,
		payer:    payer,
		opts:     opts,
		logger:   logger.Named("minter"),
	}
}

// CheckAccess evaluates the access policy for wallet at the service clock.
func (s *Service) CheckAccess(wallet solana.PublicKey) access.Decision {
	return s.policy.Check(wallet.String(), s.opts.Now())
}

// Mint checks access and machine state, then mints up to quantity items.
// Quantity is clamped to the items remaining.
func (s *Service) Mint(ctx context.Context, quantity int) (*Report, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}
	payer := s.payer.PublicKey()
	log := s.logger.With(zap.String("payer", payer.String()))

	if d := s.CheckAccess(payer); !d.Allowed {
		log.Warn("Mint refused by access policy", zap.String("reason", d.Reason))
		return nil, ErrNotAuthorized
	}

	st, err := s.state.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candy machine state: %w", err)
	}
	if st.IsSoldOut() {
		return nil, ErrSoldOut
	}
	if !st.IsLive(s.opts.Now(), payer) {
		return nil, ErrNotLive
	}

	attempt := quantity
	if uint64(attempt) > st.ItemsRemaining {
		attempt = int(st.ItemsRemaining)
		log.Info("Quantity clamped to remaining items",
			zap.Int("requested", quantity),
			zap.Int("attempt", attempt))
	}

	factory, err := candymachine.NewMintFactory(s.reader, st, payer, s.opts.Treasury, s.logger)
	if err != nil {
		return nil, err
	}
	built, err := transaction.BuildBatch(ctx, attempt, factory, s.opts.BuildConcurrency)
	if err != nil {
		return nil, err
	}

	res, err := s.executor.Execute(ctx, built, s.payer)
	if err != nil {
		return nil, fmt.Errorf("mint batch: %w", err)
	}

	report := newReport(quantity, attempt, res, s.opts.Catalog)
	s.refresh(ctx, report, payer, log)

	log.Info("Mint finished",
		zap.String("batch_id", report.BatchID.String()),
		zap.String("classification", string(report.Classification)),
		zap.Int("minted", report.Successes),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}

// refresh re-reads machine state and payer balance; failures here do not fail the mint.
func (s *Service) refresh(ctx context.Context, report *Report, payer solana.PublicKey, log *zap.Logger) {
	if st, err := s.state.State(ctx); err != nil {
		log.Warn("Failed to refresh candy machine state", zap.Error(err))
	} else {
		report.State = st
	}
	if lamports, err := s.reader.GetBalance(ctx, payer); err != nil {
		log.Warn("Failed to fetch payer balance", zap.Error(err))
	} else {
		sol := candymachine.LamportsToSOL(lamports)
		report.Balance = &sol
	}
}

// State returns the current machine state.
func (s *Service) State(ctx context.Context) (*candymachine.State, error) {
	return s.state.State(ctx)
}
