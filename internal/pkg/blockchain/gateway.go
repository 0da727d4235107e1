package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrReverted     = errors.New("transaction reverted")
)

// FetchResult is the outcome of reading a single game inside a batch. Exactly
// one of Record and Err is set.
type FetchResult struct {
	Id     uint64
	Record *model.GameRecord
	Err    error
}

func (r FetchResult) Ok() bool {
	return r.Err == nil && r.Record != nil
}

// Gateway is the read and write surface of the DiceGame contract.
type Gateway interface {
	GameCount(ctx context.Context) (uint64, error)
	// Games reads every id in one batched round and reports per-id results in
	// the order of ids.
	Games(ctx context.Context, ids []uint64) []FetchResult
	Game(ctx context.Context, id uint64) (*model.GameRecord, error)

	CreateGame(ctx context.Context, stake *big.Int, asset model.Asset) (common.Hash, error)
	JoinGame(ctx context.Context, id uint64, stake *big.Int, asset model.Asset) (common.Hash, error)
	Refund(ctx context.Context, id uint64) (common.Hash, error)
	// Await blocks until the transaction is included. A reverted transaction
	// returns an error wrapping ErrReverted.
	Await(ctx context.Context, hash common.Hash) error
}
