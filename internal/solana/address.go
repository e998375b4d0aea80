package solana

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program and mint addresses.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	SystemProgramID          = "11111111111111111111111111111111"
	WSOLMint                 = "So11111111111111111111111111111111111111112"
	USDCMint                 = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// ValidateAddress reports whether s is a well-formed Solana address:
// base58, decoding to exactly 32 bytes.
func ValidateAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// IsOnCurve reports whether a 32-byte point lies on the ed25519 curve.
// Wallet addresses are on-curve; program derived addresses are not.
func IsOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// FindProgramAddress derives a Program Derived Address for the given seeds,
// searching bump seeds from 255 down until an off-curve point is found.
func FindProgramAddress(seeds [][]byte, programID string) (string, error) {
	program, err := base58.Decode(programID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, program...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !IsOnCurve(hash[:]) {
			return base58.Encode(hash[:]), nil
		}
	}

	return "", fmt.Errorf("no off-curve address found for program %s", programID)
}

// AssociatedTokenAddress derives the associated token account for a wallet
// and mint.
func AssociatedTokenAddress(wallet, mint string) (string, error) {
	walletBytes, err := base58.Decode(wallet)
	if err != nil {
		return "", fmt.Errorf("decode wallet: %w", err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	tokenProgram, err := base58.Decode(TokenProgramID)
	if err != nil {
		return "", fmt.Errorf("decode token program: %w", err)
	}

	seeds := [][]byte{walletBytes, tokenProgram, mintBytes}
	return FindProgramAddress(seeds, AssociatedTokenProgramID)
}

// ParsedTokenAccount holds the fields the bot reads from raw SPL token
// account data.
type ParsedTokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64 // raw amount, decimals not applied
}

// ParseTokenAccount parses base64-encoded SPL token account data.
// Token account layout: mint(32) | owner(32) | amount(8) | ...
func ParseTokenAccount(data string) (*ParsedTokenAccount, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode token account data: %w", err)
	}
	if len(decoded) < 72 {
		return nil, fmt.Errorf("token account data too short: %d", len(decoded))
	}

	return &ParsedTokenAccount{
		Mint:   base58.Encode(decoded[:32]),
		Owner:  base58.Encode(decoded[32:64]),
		Amount: binary.LittleEndian.Uint64(decoded[64:72]),
	}, nil
}

// ParseMintSupply parses base64-encoded SPL mint account data and returns
// the raw supply and decimals.
// Mint layout: mintAuthorityOption(4) | mintAuthority(32) | supply(8) | decimals(1) | ...
func ParseMintSupply(data string) (supply uint64, decimals int, err error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, 0, fmt.Errorf("decode mint data: %w", err)
	}
	if len(decoded) < 45 {
		return 0, 0, fmt.Errorf("mint data too short: %d", len(decoded))
	}
	return binary.LittleEndian.Uint64(decoded[36:44]), int(decoded[44]), nil
}
