package model

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var host = common.HexToAddress("0x02ef5a3c4c14e23e10f1f0e7d91e0a8f7f3b5596")

func TestOpenRecord(t *testing.T) {
	g := GameRecord{Player1: host, IsActive: true, Stake: big.NewInt(1)}
	assert.True(t, g.IsOpen())

	g.Player2 = common.HexToAddress("0x1")
	assert.False(t, g.IsOpen())

	g.Player2 = common.Address{}
	g.IsActive = false
	assert.False(t, g.IsOpen())
}

func TestCanRefund(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := GameRecord{Player1: host, IsActive: true, StartTime: uint64(start.Unix()), Stake: big.NewInt(1)}

	assert.False(t, g.CanRefund(start.Add(86399*time.Second)))
	assert.True(t, g.CanRefund(start.Add(86400*time.Second)))
	assert.Equal(t, start.Add(24*time.Hour), g.RefundableAt())

	g.IsActive = false
	assert.False(t, g.CanRefund(start.Add(48*time.Hour)))
}

func TestPayout(t *testing.T) {
	g := GameRecord{Stake: big.NewInt(100_000)}
	assert.Equal(t, "180000", g.Payout().String())
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x02Ef...5596", ShortAddress(host))
}

func TestGameRecordJSON(t *testing.T) {
	stake, _ := new(big.Int).SetString("100000000000000000", 10)
	g := GameRecord{Id: 7, Player1: host, Asset: NativeAsset(), Stake: stake, StartTime: 10, IsActive: true}

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stake":"100000000000000000"`)

	var back GameRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Id, back.Id)
	assert.Equal(t, 0, g.Stake.Cmp(back.Stake))
	assert.Equal(t, g.Player1, back.Player1)
}

func TestActionTransitions(t *testing.T) {
	now := time.Now()
	a := NewAction(ActionCreate, nil, "0.1", AssetNative, now)
	assert.Equal(t, StatusIdle, a.Status)

	assert.Error(t, a.Transition(StatusConfirmed, now))
	require.NoError(t, a.Transition(StatusPending, now))
	require.NoError(t, a.Fail(ReasonInsufficientFunds, now))
	assert.Equal(t, ReasonInsufficientFunds, a.Reason)

	assert.Error(t, a.Transition(StatusPending, now))
	assert.True(t, a.Status.Terminal())
}
