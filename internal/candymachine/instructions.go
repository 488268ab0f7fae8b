// internal/candymachine/instructions.go
package candymachine

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID программа candy machine v1.
	ProgramID = solana.MustPublicKeyFromBase58("cndyAnrLdpjq1Ssp1z8xxDsB8dxe7u4HL5Nxi2K5WXZ")
	// TokenMetadataProgramID программа метаданных Metaplex.
	TokenMetadataProgramID = solana.TokenMetadataProgramID

	mintNftDiscriminator = bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, "mint_nft")
)

// FindMetadataAddress PDA ["metadata", program, mint].
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), TokenMetadataProgramID.Bytes(), mint.Bytes()},
		TokenMetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata: %w", err)
	}
	return addr, nil
}

// FindMasterEditionAddress PDA ["metadata", program, mint, "edition"].
func FindMasterEditionAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), TokenMetadataProgramID.Bytes(), mint.Bytes(), []byte("edition")},
		TokenMetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive master edition: %w", err)
	}
	return addr, nil
}

// MintNftAccounts аккаунты инструкции mint_nft.
type MintNftAccounts struct {
	Config        solana.PublicKey
	CandyMachine  solana.PublicKey
	Payer         solana.PublicKey
	Treasury      solana.PublicKey
	Mint          solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
}

// BuildMintNftInstruction собирает mint_nft. Аргументов у инструкции нет, данные это только дискриминатор.
func BuildMintNftInstruction(accounts MintNftAccounts) solana.Instruction {
	data := make([]byte, len(mintNftDiscriminator))
	copy(data, mintNftDiscriminator)

	// Порядок полей структуры MintNFT программы; Anchor читает аккаунты по позиции.
	metas := []*solana.AccountMeta{
		{PublicKey: accounts.Config, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.CandyMachine, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Payer, IsSigner: true, IsWritable: true},
		{PublicKey: accounts.Treasury, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Metadata, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Mint, IsSigner: false, IsWritable: true},
		// mint authority и update authority это payer
		{PublicKey: accounts.Payer, IsSigner: true, IsWritable: false},
		{PublicKey: accounts.Payer, IsSigner: true, IsWritable: false},
		{PublicKey: accounts.MasterEdition, IsSigner: false, IsWritable: true},
		{PublicKey: TokenMetadataProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarClockPubkey, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(ProgramID, metas, data)
}
