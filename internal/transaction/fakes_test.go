package transaction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter считает отправки; failFor решает, какая подпись отклоняется.
type fakeSubmitter struct {
	mu      sync.Mutex
	calls   map[solana.Signature]int
	total   atomic.Int32
	failFor func(sig solana.Signature, call int) error
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{calls: make(map[solana.Signature]int)}
}

func (f *fakeSubmitter) SubmitRaw(_ context.Context, raw []byte, _ blockchain.TransactionOptions) (solana.Signature, error) {
	f.total.Add(1)
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signatures[0]

	f.mu.Lock()
	f.calls[sig]++
	call := f.calls[sig]
	f.mu.Unlock()

	if f.failFor != nil {
		if err := f.failFor(sig, call); err != nil {
			return solana.Signature{}, err
		}
	}
	return sig, nil
}

func (f *fakeSubmitter) callsFor(sig solana.Signature) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sig]
}

// fakeSubscription управляется из теста через notify/fail.
type fakeSubscription struct {
	ch           chan *blockchain.SignatureNotification
	errCh        chan error
	unsubscribed atomic.Int32
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		ch:    make(chan *blockchain.SignatureNotification, 8),
		errCh: make(chan error, 1),
	}
}

func (s *fakeSubscription) notify(slot uint64, txErr *blockchain.TxError) {
	s.ch <- &blockchain.SignatureNotification{Slot: slot, Err: txErr}
}

func (s *fakeSubscription) Recv(ctx context.Context) (*blockchain.SignatureNotification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-s.ch:
		return n, nil
	case err := <-s.errCh:
		return nil, err
	}
}

func (s *fakeSubscription) Unsubscribe() {
	s.unsubscribed.Add(1)
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[solana.Signature]*fakeSubscription
	err  error
	// onSubscribe вызывается после создания подписки, удобно для автоответа.
	onSubscribe func(sig solana.Signature, sub *fakeSubscription)
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[solana.Signature]*fakeSubscription)}
}

func (f *fakeSubscriber) SubscribeSignature(_ context.Context, sig solana.Signature, _ rpc.CommitmentType) (blockchain.SignatureSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	sub, ok := f.subs[sig]
	if !ok {
		sub = newFakeSubscription()
		f.subs[sig] = sub
	}
	f.mu.Unlock()
	if f.onSubscribe != nil {
		f.onSubscribe(sig, sub)
	}
	return sub, nil
}

func (f *fakeSubscriber) subscription(sig solana.Signature) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[sig]
	if !ok {
		sub = newFakeSubscription()
		f.subs[sig] = sub
	}
	return sub
}

type fakePoller struct {
	calls atomic.Int32
	fn    func(call int) (*blockchain.SignatureStatus, error)
}

func (f *fakePoller) GetSignatureStatus(context.Context, solana.Signature) (*blockchain.SignatureStatus, error) {
	call := int(f.calls.Add(1))
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(call)
}

type fakeBlockhash struct {
	hash        solana.Hash
	err         error
	invalidated atomic.Int32
}

func (f *fakeBlockhash) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.hash, f.err
}

func (f *fakeBlockhash) Invalidate() { f.invalidated.Add(1) }

// fakePayer подписывает транзакции своим ключом и считает вызовы SignAll.
type fakePayer struct {
	key     solana.PrivateKey
	calls   atomic.Int32
	decline bool
	// tamper позволяет испортить ответ подписанта.
	tamper func([]*solana.Transaction) []*solana.Transaction
}

func newFakePayer(t *testing.T) *fakePayer {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &fakePayer{key: key}
}

func (p *fakePayer) PublicKey() solana.PublicKey { return p.key.PublicKey() }

func (p *fakePayer) SignAll(_ context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	p.calls.Add(1)
	if p.decline {
		return nil, ErrSignDeclined
	}
	for _, tx := range txs {
		if _, err := tx.PartialSign(func(pk solana.PublicKey) *solana.PrivateKey {
			if pk.Equals(p.key.PublicKey()) {
				return &p.key
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if p.tamper != nil {
		return p.tamper(txs), nil
	}
	return txs, nil
}

// newTestItem собирает элемент с эфемерным аккаунтом, как при создании mint.
func newTestItem(t *testing.T, index int, payer solana.PublicKey) *Item {
	t.Helper()
	ephemeral, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix := system.NewCreateAccountInstruction(
		1_000_000, 82, solana.TokenProgramID, payer, ephemeral.PublicKey(),
	).Build()
	return &Item{
		Index:        index,
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{ephemeral},
		Label:        ephemeral.PublicKey().String(),
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	started   int
	submitted []int
	resolved  []int
	completed *BatchResult
}

func (r *recordingObserver) BatchStarted(uuid.UUID, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingObserver) ItemSubmitted(_ uuid.UUID, index int, _ solana.Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, index)
}

func (r *recordingObserver) ItemResolved(_ uuid.UUID, res ItemResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, res.Index)
}

func (r *recordingObserver) BatchCompleted(res *BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = res
}

var errTransport = errors.New("transport down")

func u32(v uint32) *uint32 { return &v }
