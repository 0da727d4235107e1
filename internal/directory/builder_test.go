package directory

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	host  = common.HexToAddress("0x02ef5a3c4c14e23e10f1f0e7d91e0a8f7f3b5596")
	guest = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	usdc  = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	units = model.AssetUnits{NativeSymbol: "ETH", TokenSymbol: "USDC", TokenDecimals: 6}
)

func newSim() *blockchain.SimulatedGateway {
	return blockchain.NewSimulatedGateway(usdc, host, func() time.Time { return time.Unix(1_700_000_000, 0) })
}

func openGame(stake int64) model.GameRecord {
	return model.GameRecord{Player1: host, Asset: model.NativeAsset(), Stake: big.NewInt(stake), StartTime: 1_700_000_000, IsActive: true}
}

func ids(entries []model.DuelListEntry) []uint64 {
	out := []uint64{}
	for _, e := range entries {
		out = append(out, e.Id)
	}
	return out
}

func TestWindowRange(t *testing.T) {
	for n := uint64(0); n < 60; n++ {
		for w := uint64(0); w < 30; w++ {
			start, end := WindowRange(n, w)
			assert.Equal(t, end, n)
			assert.LessOrEqual(t, start, end)
			assert.Equal(t, min(n, w), end-start, "n=%d w=%d", n, w)
		}
	}

	start, end := WindowRange(5, 20)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(5), end)
}

func TestBuildKeepsOpenGamesNewestFirst(t *testing.T) {
	sim := newSim()
	resolved := openGame(1)
	resolved.IsActive = false
	joined := openGame(1)
	joined.Player2 = guest

	sim.Seed(resolved)    // 0
	sim.Seed(openGame(1)) // 1
	sim.Seed(joined)      // 2
	sim.Seed(openGame(1)) // 3
	sim.Seed(resolved)    // 4

	snapshot, err := NewBuilder(sim, 20, units).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(5), snapshot.Total)
	assert.Equal(t, []uint64{3, 1}, ids(snapshot.Entries))
}

func TestBuildOnlyReadsWindow(t *testing.T) {
	sim := newSim()
	for i := 0; i < 30; i++ {
		sim.Seed(openGame(1))
	}

	snapshot, err := NewBuilder(sim, 20, units).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 20)
	assert.Equal(t, uint64(29), snapshot.Entries[0].Id)
	assert.Equal(t, uint64(10), snapshot.Entries[19].Id)
}

func TestBuildEmptyRegistry(t *testing.T) {
	snapshot, err := NewBuilder(newSim(), 20, units).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot.Entries)

	data, err := json.Marshal(snapshot.Entries)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestBuildDropsFailedReads(t *testing.T) {
	sim := newSim()
	sim.Seed(openGame(1))
	sim.Seed(openGame(1))
	sim.FailRead(1, errors.New("header not found"))

	snapshot, err := NewBuilder(sim, 20, units).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ids(snapshot.Entries))
}

func TestBuildFiltersRandomBatches(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		sim := newSim()
		n := rnd.Intn(40)
		for i := 0; i < n; i++ {
			g := openGame(int64(rnd.Intn(1000) + 1))
			g.IsActive = rnd.Intn(3) > 0
			if rnd.Intn(3) == 0 {
				g.Player2 = guest
			}
			sim.Seed(g)
		}

		snapshot, err := NewBuilder(sim, uint64(rnd.Intn(25)+1), units).Build(context.Background())
		require.NoError(t, err)

		for i, e := range snapshot.Entries {
			g, err := sim.Game(context.Background(), e.Id)
			require.NoError(t, err)
			assert.True(t, g.IsActive)
			assert.Equal(t, common.Address{}, g.Player2)
			if i > 0 {
				assert.Greater(t, snapshot.Entries[i-1].Id, e.Id)
			}
		}
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	sim := newSim()
	for i := 0; i < 8; i++ {
		sim.Seed(openGame(int64(i + 1)))
	}
	b := NewBuilder(sim, 20, units)

	first, err := b.Build(context.Background())
	require.NoError(t, err)
	second, err := b.Build(context.Background())
	require.NoError(t, err)

	a, _ := json.Marshal(first.Entries)
	c, _ := json.Marshal(second.Entries)
	assert.Equal(t, a, c)
}

func TestBuildFormatsStakes(t *testing.T) {
	sim := newSim()
	native := openGame(0)
	native.Stake, _ = new(big.Int).SetString("100000000000000000", 10)
	sim.Seed(native)
	token := openGame(12_500_000)
	token.Asset = model.TokenAsset(usdc)
	sim.Seed(token)

	snapshot, err := NewBuilder(sim, 20, units).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 2)

	assert.Equal(t, "12.5", snapshot.Entries[0].Stake)
	assert.Equal(t, "USDC", snapshot.Entries[0].AssetSymbol)
	assert.Equal(t, "0.1", snapshot.Entries[1].Stake)
	assert.Equal(t, "100000000000000000", snapshot.Entries[1].StakeRaw)
	assert.Equal(t, "ETH", snapshot.Entries[1].AssetSymbol)
	assert.Equal(t, "0x02Ef...5596", snapshot.Entries[1].HostShort)
}
