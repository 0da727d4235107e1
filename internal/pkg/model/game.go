package model

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	RefundDelay = 24 * time.Hour
	// FeeBps is the share of the pot the contract sends to its treasury.
	FeeBps = 1000
)

type GameRecord struct {
	Id        uint64
	Player1   common.Address
	Player2   common.Address
	Asset     Asset
	Stake     *big.Int
	StartTime uint64
	IsActive  bool
}

func (g GameRecord) IsOpen() bool {
	return g.IsActive && g.Player2 == (common.Address{})
}

func (g GameRecord) RefundableAt() time.Time {
	return time.Unix(int64(g.StartTime), 0).Add(RefundDelay).UTC()
}

// CanRefund reports whether the creator may reclaim the stake at now.
func (g GameRecord) CanRefund(now time.Time) bool {
	return g.IsOpen() && now.Unix()-int64(g.StartTime) >= int64(RefundDelay/time.Second)
}

// Payout is what the winner receives once both stakes are in the pot.
func (g GameRecord) Payout() *big.Int {
	if g.Stake == nil {
		return new(big.Int)
	}
	pot := new(big.Int).Mul(g.Stake, big.NewInt(2))
	fee := new(big.Int).Mul(pot, big.NewInt(FeeBps))
	fee.Div(fee, big.NewInt(10_000))
	return pot.Sub(pot, fee)
}

type gameRecordJSON struct {
	Id        uint64 `json:"id"`
	Player1   string `json:"player1"`
	Player2   string `json:"player2"`
	Asset     Asset  `json:"asset"`
	Stake     string `json:"stake"`
	StartTime uint64 `json:"startTime"`
	IsActive  bool   `json:"isActive"`
}

func (g GameRecord) MarshalJSON() ([]byte, error) {
	stake := "0"
	if g.Stake != nil {
		stake = g.Stake.String()
	}
	return json.Marshal(gameRecordJSON{
		Id:        g.Id,
		Player1:   g.Player1.Hex(),
		Player2:   g.Player2.Hex(),
		Asset:     g.Asset,
		Stake:     stake,
		StartTime: g.StartTime,
		IsActive:  g.IsActive,
	})
}

func (g *GameRecord) UnmarshalJSON(data []byte) error {
	var raw gameRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	stake, ok := new(big.Int).SetString(raw.Stake, 10)
	if !ok {
		stake = new(big.Int)
	}
	*g = GameRecord{
		Id:        raw.Id,
		Player1:   common.HexToAddress(raw.Player1),
		Player2:   common.HexToAddress(raw.Player2),
		Asset:     raw.Asset,
		Stake:     stake,
		StartTime: raw.StartTime,
		IsActive:  raw.IsActive,
	}
	return nil
}

// ShortAddress renders the checksummed address as 0x02Ef...5596.
func ShortAddress(a common.Address) string {
	hex := a.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}
