package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSignBatchSingleSignerCall(t *testing.T) {
	payer := newFakePayer(t)
	items := []*Item{
		newTestItem(t, 0, payer.PublicKey()),
		newTestItem(t, 1, payer.PublicKey()),
		newTestItem(t, 2, payer.PublicKey()),
	}
	blockhash := solana.Hash{7, 7}

	signed, failures, err := NewBatchSigner(zaptest.NewLogger(t)).SignBatch(context.Background(), items, blockhash, payer)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, signed, 3)
	assert.Equal(t, int32(1), payer.calls.Load())

	seen := map[solana.Signature]bool{}
	for i, stx := range signed {
		assert.Equal(t, i, stx.Index())
		assert.Equal(t, blockhash, stx.Blockhash())
		assert.Equal(t, items[i].Label, stx.Label())
		assert.False(t, seen[stx.Signature()])
		seen[stx.Signature()] = true

		tx, err := solana.TransactionFromBytes(stx.Raw())
		require.NoError(t, err)
		require.NoError(t, tx.VerifySignatures())
		assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
		assert.Len(t, tx.Signatures, 2)
	}
}

func TestSignBatchRawIsImmutable(t *testing.T) {
	payer := newFakePayer(t)
	signed, _, err := NewBatchSigner(zaptest.NewLogger(t)).SignBatch(context.Background(),
		[]*Item{newTestItem(t, 0, payer.PublicKey())}, solana.Hash{1}, payer)
	require.NoError(t, err)

	raw := signed[0].Raw()
	raw[0] ^= 0xff
	assert.NotEqual(t, raw, signed[0].Raw())
}

func TestSignBatchFailsAtomically(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(p *fakePayer)
		hash   solana.Hash
		target error
	}{
		{
			name:   "declined",
			setup:  func(p *fakePayer) { p.decline = true },
			hash:   solana.Hash{1},
			target: ErrSignDeclined,
		},
		{
			name: "short reply",
			setup: func(p *fakePayer) {
				p.tamper = func(txs []*solana.Transaction) []*solana.Transaction { return txs[:1] }
			},
			hash: solana.Hash{1},
		},
		{
			name: "payer signature missing",
			setup: func(p *fakePayer) {
				p.tamper = func(txs []*solana.Transaction) []*solana.Transaction {
					txs[1].Signatures[0] = solana.Signature{}
					return txs
				}
			},
			hash: solana.Hash{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payer := newFakePayer(t)
			tt.setup(payer)
			items := []*Item{newTestItem(t, 0, payer.PublicKey()), newTestItem(t, 1, payer.PublicKey())}

			signed, _, err := NewBatchSigner(zaptest.NewLogger(t)).SignBatch(context.Background(), items, tt.hash, payer)
			require.Error(t, err)
			assert.Nil(t, signed)

			var signErr *SignError
			require.ErrorAs(t, err, &signErr)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestSignBatchUncompilableItem(t *testing.T) {
	payer := newFakePayer(t)
	items := []*Item{
		newTestItem(t, 0, payer.PublicKey()),
		{Index: 1},
		newTestItem(t, 2, payer.PublicKey()),
	}

	signed, failures, err := NewBatchSigner(zaptest.NewLogger(t)).SignBatch(context.Background(), items, solana.Hash{3}, payer)
	require.NoError(t, err)
	require.Len(t, signed, 2)
	assert.Equal(t, 0, signed[0].Index())
	assert.Equal(t, 2, signed[1].Index())

	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	var buildErr *BuildError
	assert.ErrorAs(t, failures[0].Err, &buildErr)
}
