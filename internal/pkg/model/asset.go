package model

import "github.com/ethereum/go-ethereum/common"

type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

const NativeDecimals = 18

// Asset is the currency a duel is staked in. The contract stores the zero
// address in its token field for native coin games.
type Asset struct {
	Kind  AssetKind      `json:"kind"`
	Token common.Address `json:"token"`
}

func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

func TokenAsset(token common.Address) Asset {
	return Asset{Kind: AssetToken, Token: token}
}

func AssetFromContract(token common.Address) Asset {
	if token == (common.Address{}) {
		return NativeAsset()
	}
	return TokenAsset(token)
}

func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

func ParseAssetKind(s string) (AssetKind, bool) {
	switch AssetKind(s) {
	case AssetNative, "":
		return AssetNative, true
	case AssetToken:
		return AssetToken, true
	}
	return "", false
}

// AssetUnits describes how stakes of each asset kind are displayed.
type AssetUnits struct {
	NativeSymbol  string
	TokenSymbol   string
	TokenDecimals int
}

func (u AssetUnits) Decimals(kind AssetKind) int {
	if kind == AssetToken {
		return u.TokenDecimals
	}
	return NativeDecimals
}

func (u AssetUnits) Symbol(kind AssetKind) string {
	if kind == AssetToken {
		return u.TokenSymbol
	}
	return u.NativeSymbol
}
