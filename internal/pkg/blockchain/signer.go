package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoSigner = errors.New("no signing key configured")

type chainIdReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer is the account every write is sent from.
type Signer struct {
	Address common.Address
	opts    *bind.TransactOpts
}

// NewSigner loads a hex encoded secp256k1 key and binds it to the chain the
// client is connected to.
func NewSigner(ctx context.Context, client chainIdReader, privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, ErrNoSigner
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	chainId, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainId)
	if err != nil {
		return nil, err
	}
	return &Signer{Address: opts.From, opts: opts}, nil
}

// AddressFromKey derives the account address without touching a node.
func AddressFromKey(privateKeyHex string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *Signer) transactOpts(ctx context.Context, value *big.Int) *bind.TransactOpts {
	opts := *s.opts
	opts.Context = ctx
	opts.Value = value
	return &opts
}
