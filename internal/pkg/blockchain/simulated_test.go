package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	usdc  = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func eth(s string) *big.Int {
	v, err := model.ParseUnits(s, 18)
	if err != nil {
		panic(err)
	}
	return v
}

func newSim(c *clock) *SimulatedGateway {
	sim := NewSimulatedGateway(usdc, alice, c.Now)
	sim.Fund(alice, model.NativeAsset(), eth("10"))
	sim.Fund(bob, model.NativeAsset(), eth("10"))
	sim.Fund(alice, model.TokenAsset(usdc), big.NewInt(100_000_000))
	sim.Fund(bob, model.TokenAsset(usdc), big.NewInt(100_000_000))
	return sim
}

func TestSimulatedCreateAndJoinNative(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	sim := newSim(c)
	sim.SetRoll(func() bool { return false })

	hash, err := sim.CreateGame(ctx, eth("0.1"), model.NativeAsset())
	require.NoError(t, err)
	require.NoError(t, sim.Await(ctx, hash))

	g, err := sim.Game(ctx, 0)
	require.NoError(t, err)
	assert.True(t, g.IsOpen())
	assert.Equal(t, alice, g.Player1)
	assert.Equal(t, 0, eth("0.1").Cmp(g.Stake))

	sim.UseSender(bob)
	_, err = sim.JoinGame(ctx, 0, eth("0.05"), model.NativeAsset())
	require.Error(t, err)
	assert.Equal(t, model.ReasonStakeMismatch, Classify(err))

	hash, err = sim.JoinGame(ctx, 0, eth("0.1"), model.NativeAsset())
	require.NoError(t, err)
	require.NoError(t, sim.Await(ctx, hash))

	g, _ = sim.Game(ctx, 0)
	assert.False(t, g.IsActive)
	assert.Equal(t, bob, g.Player2)
	assert.Equal(t, 0, eth("0.02").Cmp(sim.TreasuryBalance(model.NativeAsset())))

	winner, ok := sim.Winner(0)
	require.True(t, ok)
	assert.Equal(t, bob, winner)
	assert.Equal(t, 0, eth("10.08").Cmp(sim.Balance(bob, model.NativeAsset())))
}

func TestSimulatedTokenGame(t *testing.T) {
	ctx := context.Background()
	sim := newSim(&clock{t: time.Unix(1_700_000_000, 0)})

	_, err := sim.CreateGame(ctx, big.NewInt(10_000_000), model.TokenAsset(usdc))
	require.NoError(t, err)

	sim.UseSender(bob)
	_, err = sim.JoinGame(ctx, 0, big.NewInt(5_000_000), model.TokenAsset(usdc))
	assert.Equal(t, model.ReasonInsufficientAllowance, Classify(err))

	_, err = sim.JoinGame(ctx, 0, big.NewInt(10_000_000), model.TokenAsset(usdc))
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), sim.TreasuryBalance(model.TokenAsset(usdc)).Int64())
}

func TestSimulatedAllowanceAndFunds(t *testing.T) {
	ctx := context.Background()
	sim := newSim(&clock{t: time.Unix(1_700_000_000, 0)})

	sim.SetAutoApprove(false)
	_, err := sim.CreateGame(ctx, big.NewInt(1_000_000), model.TokenAsset(usdc))
	assert.Equal(t, model.ReasonInsufficientAllowance, Classify(err))

	sim.Approve(big.NewInt(1_000_000))
	_, err = sim.CreateGame(ctx, big.NewInt(1_000_000), model.TokenAsset(usdc))
	assert.NoError(t, err)

	_, err = sim.CreateGame(ctx, eth("11"), model.NativeAsset())
	assert.Equal(t, model.ReasonInsufficientFunds, Classify(err))
}

func TestSimulatedRefundWindow(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	sim := newSim(c)

	_, err := sim.CreateGame(ctx, eth("0.1"), model.NativeAsset())
	require.NoError(t, err)

	c.t = c.t.Add(86399 * time.Second)
	_, err = sim.Refund(ctx, 0)
	assert.Equal(t, model.ReasonTooEarly, Classify(err))

	c.t = c.t.Add(2 * time.Second)
	_, err = sim.Refund(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, eth("10").Cmp(sim.Balance(alice, model.NativeAsset())))

	_, err = sim.Refund(ctx, 0)
	assert.Equal(t, model.ReasonNotFound, Classify(err))
}

func TestSimulatedReads(t *testing.T) {
	ctx := context.Background()
	sim := newSim(&clock{t: time.Unix(1_700_000_000, 0)})
	sim.Seed(model.GameRecord{Player1: alice, Stake: big.NewInt(1), IsActive: true})
	sim.Seed(model.GameRecord{Player1: alice, Stake: big.NewInt(2), IsActive: true})
	sim.FailRead(1, errors.New("boom"))

	n, err := sim.GameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	res := sim.Games(ctx, []uint64{0, 1, 2})
	assert.True(t, res[0].Ok())
	assert.False(t, res[1].Ok())
	assert.ErrorIs(t, res[2].Err, ErrGameNotFound)
}
