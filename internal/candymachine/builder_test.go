package candymachine

import (
	"context"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

func testState() *State {
	acc := testAccount(nil)
	return newState(solana.NewWallet().PublicKey(), &acc)
}

func TestMintFactoryBuildItem(t *testing.T) {
	st := testState()
	payer := solana.NewWallet().PublicKey()
	reader := &fakeReader{rent: 1_461_600}

	f, err := NewMintFactory(reader, st, payer, solana.PublicKey{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	item, err := f.BuildItem(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Index)
	require.Len(t, item.Instructions, 5)
	require.Len(t, item.Signers, 1)

	mint := item.Signers[0].PublicKey()
	assert.Equal(t, mint.String(), item.Label)

	programs := make([]solana.PublicKey, 0, len(item.Instructions))
	for _, ix := range item.Instructions {
		programs = append(programs, ix.ProgramID())
	}
	assert.Equal(t, []solana.PublicKey{
		solana.SystemProgramID,
		solana.TokenProgramID,
		solana.SPLAssociatedTokenAccountProgramID,
		solana.TokenProgramID,
		ProgramID,
	}, programs)

	mintNft := item.Instructions[4]
	data, err := mintNft.Data()
	require.NoError(t, err)
	assert.Equal(t, bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, "mint_nft"), data)

	accounts := mintNft.Accounts()
	require.Len(t, accounts, 14)
	assert.Equal(t, st.Config, accounts[0].PublicKey)
	assert.Equal(t, st.ID, accounts[1].PublicKey)
	assert.Equal(t, payer, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, st.Wallet, accounts[3].PublicKey, "treasury defaults to machine wallet")
	assert.Equal(t, mint, accounts[5].PublicKey)

	metadata, err := FindMetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, metadata, accounts[4].PublicKey)
	sdkMetadata, _, err := solana.FindTokenMetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, sdkMetadata, metadata)

	tx, err := solana.NewTransaction(item.Instructions, solana.Hash{1}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	signers := tx.Message.Signers()
	assert.ElementsMatch(t, []solana.PublicKey{payer, mint}, signers)
}

func TestMintNftAccountOrder(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	metadata, err := FindMetadataAddress(mint)
	require.NoError(t, err)
	edition, err := FindMasterEditionAddress(mint)
	require.NoError(t, err)

	in := MintNftAccounts{
		Config:        solana.NewWallet().PublicKey(),
		CandyMachine:  solana.NewWallet().PublicKey(),
		Payer:         solana.NewWallet().PublicKey(),
		Treasury:      solana.NewWallet().PublicKey(),
		Mint:          mint,
		Metadata:      metadata,
		MasterEdition: edition,
	}
	ix := BuildMintNftInstruction(in)
	assert.Equal(t, ProgramID, ix.ProgramID())

	// Field order of the on-chain MintNFT accounts struct.
	want := []struct {
		name     string
		key      solana.PublicKey
		signer   bool
		writable bool
	}{
		{"config", in.Config, false, false},
		{"candy_machine", in.CandyMachine, false, true},
		{"payer", in.Payer, true, true},
		{"wallet", in.Treasury, false, true},
		{"metadata", metadata, false, true},
		{"mint", mint, false, true},
		{"mint_authority", in.Payer, true, false},
		{"update_authority", in.Payer, true, false},
		{"master_edition", edition, false, true},
		{"token_metadata_program", TokenMetadataProgramID, false, false},
		{"token_program", solana.TokenProgramID, false, false},
		{"system_program", solana.SystemProgramID, false, false},
		{"rent", solana.SysVarRentPubkey, false, false},
		{"clock", solana.SysVarClockPubkey, false, false},
	}
	got := ix.Accounts()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.key, got[i].PublicKey, "%d %s", i, w.name)
		assert.Equal(t, w.signer, got[i].IsSigner, "%d %s signer", i, w.name)
		assert.Equal(t, w.writable, got[i].IsWritable, "%d %s writable", i, w.name)
	}
}

func TestMintFactoryItemsAreIndependent(t *testing.T) {
	reader := &fakeReader{rent: 1}
	f, err := NewMintFactory(reader, testState(), solana.NewWallet().PublicKey(), solana.PublicKey{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	results, err := transaction.BuildBatch(context.Background(), 5, f, 3)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.False(t, seen[r.Item.Label], "mint reused")
		seen[r.Item.Label] = true
	}
	assert.Equal(t, int32(1), reader.rentCalls.Load())
}

func TestMintFactoryTreasuryOverride(t *testing.T) {
	treasury := solana.NewWallet().PublicKey()
	f, err := NewMintFactory(&fakeReader{rent: 1}, testState(), solana.NewWallet().PublicKey(), treasury, zaptest.NewLogger(t))
	require.NoError(t, err)

	item, err := f.BuildItem(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, treasury, item.Instructions[4].Accounts()[3].PublicKey)
}

func TestMintFactoryErrors(t *testing.T) {
	st := testState()
	tokenMint := solana.NewWallet().PublicKey()
	st.TokenMint = &tokenMint
	_, err := NewMintFactory(&fakeReader{}, st, solana.NewWallet().PublicKey(), solana.PublicKey{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrTokenPayment)

	_, err = NewMintFactory(&fakeReader{}, nil, solana.NewWallet().PublicKey(), solana.PublicKey{}, zaptest.NewLogger(t))
	assert.Error(t, err)

	rentErr := errors.New("rpc down")
	f, err := NewMintFactory(&fakeReader{rentErr: rentErr}, testState(), solana.NewWallet().PublicKey(), solana.PublicKey{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = f.BuildItem(context.Background(), 0)
	assert.ErrorIs(t, err, rentErr)
}
