package duel

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

var (
	ErrNotFound       = errors.New("duel not found")
	ErrStaleSelection = errors.New("selected duel is no longer open")
)

type OpponentSlot string

const (
	OpponentWaiting  OpponentSlot = "waiting"
	OpponentResolved OpponentSlot = "resolved"
)

// View is everything a duel room needs to render one game.
type View struct {
	Id                 uint64          `json:"id"`
	Host               string          `json:"host"`
	HostShort          string          `json:"hostShort"`
	Opponent           string          `json:"opponent,omitempty"`
	OpponentSlot       OpponentSlot    `json:"opponentSlot"`
	Asset              model.AssetKind `json:"asset"`
	AssetSymbol        string          `json:"assetSymbol"`
	Stake              string          `json:"stake"`
	StakeRaw           string          `json:"stakeRaw"`
	Payout             string          `json:"payout"`
	StartTime          uint64          `json:"startTime"`
	CanJoin            bool            `json:"canJoin"`
	CanRefund          bool            `json:"canRefund"`
	RefundableAt       time.Time       `json:"refundableAt"`
	SecondsUntilRefund int64           `json:"secondsUntilRefund"`
}

func NewView(record model.GameRecord, now time.Time, units model.AssetUnits) View {
	decimals := units.Decimals(record.Asset.Kind)
	refundableAt := record.RefundableAt()

	v := View{
		Id:           record.Id,
		Host:         record.Player1.Hex(),
		HostShort:    model.ShortAddress(record.Player1),
		OpponentSlot: OpponentResolved,
		Asset:        record.Asset.Kind,
		AssetSymbol:  units.Symbol(record.Asset.Kind),
		Stake:        model.FormatUnits(record.Stake, decimals),
		StakeRaw:     record.Stake.String(),
		Payout:       model.FormatUnits(record.Payout(), decimals),
		StartTime:    record.StartTime,
		RefundableAt: refundableAt,
	}
	if record.Player2 != (common.Address{}) {
		v.Opponent = record.Player2.Hex()
	}
	if record.IsOpen() {
		v.OpponentSlot = OpponentWaiting
		v.CanJoin = true
		v.CanRefund = record.CanRefund(now)
		if wait := refundableAt.Sub(now); wait > 0 {
			v.SecondsUntilRefund = int64((wait + time.Second - 1) / time.Second)
		}
	}
	return v
}

// Resolve finds id among the snapshot's open duels.
func Resolve(snapshot model.DirectorySnapshot, id uint64, now time.Time, units model.AssetUnits) (View, error) {
	entry, ok := snapshot.Find(id)
	if !ok {
		return View{}, ErrNotFound
	}
	return NewView(entryRecord(entry), now, units), nil
}

// entryRecord rebuilds the open record a list entry was projected from.
func entryRecord(e model.DuelListEntry) model.GameRecord {
	stake, ok := new(big.Int).SetString(e.StakeRaw, 10)
	if !ok {
		stake = new(big.Int)
	}
	return model.GameRecord{
		Id:        e.Id,
		Player1:   common.HexToAddress(e.Host),
		Asset:     model.Asset{Kind: e.Asset},
		Stake:     stake,
		StartTime: e.StartTime,
		IsActive:  true,
	}
}

// Session is the duel a user has selected from the directory.
type Session struct {
	Id uint64
}

// Sync re-resolves the selection against a newer snapshot. A duel that has
// left the directory yields ErrStaleSelection and the caller goes back to
// the list.
func (s Session) Sync(snapshot model.DirectorySnapshot, now time.Time, units model.AssetUnits) (View, error) {
	v, err := Resolve(snapshot, s.Id, now, units)
	if errors.Is(err, ErrNotFound) {
		return View{}, ErrStaleSelection
	}
	return v, err
}
