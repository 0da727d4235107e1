package directory

import (
	"context"
	"sort"

	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/rs/zerolog/log"
)

const DefaultWindow = 20

// WindowRange returns the half open id range [start, end) of the w most
// recent games out of n.
func WindowRange(n, w uint64) (uint64, uint64) {
	if w >= n {
		return 0, n
	}
	return n - w, n
}

type Builder struct {
	gateway blockchain.Gateway
	window  uint64
	units   model.AssetUnits
}

func NewBuilder(gateway blockchain.Gateway, window uint64, units model.AssetUnits) *Builder {
	if window == 0 {
		window = DefaultWindow
	}
	return &Builder{gateway: gateway, window: window, units: units}
}

func (b *Builder) Units() model.AssetUnits {
	return b.units
}

// Build reads the most recent window of games in one batch and returns the
// open ones, newest first. Games that fail to load are left out.
func (b *Builder) Build(ctx context.Context) (model.DirectorySnapshot, error) {
	n, err := b.gateway.GameCount(ctx)
	if err != nil {
		return model.DirectorySnapshot{}, err
	}

	start, end := WindowRange(n, b.window)
	snapshot := model.DirectorySnapshot{
		Total:   n,
		Window:  b.window,
		Entries: []model.DuelListEntry{},
	}
	if start == end {
		return snapshot, nil
	}

	ids := make([]uint64, 0, end-start)
	for id := start; id < end; id++ {
		ids = append(ids, id)
	}

	open := make([]model.GameRecord, 0, len(ids))
	for _, res := range b.gateway.Games(ctx, ids) {
		if !res.Ok() {
			log.Debug().Err(res.Err).Uint64("game_id", res.Id).Msg("Skipping game that failed to load")
			continue
		}
		if res.Record.IsOpen() {
			open = append(open, *res.Record)
		}
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Id > open[j].Id })
	for _, g := range open {
		snapshot.Entries = append(snapshot.Entries, model.NewDuelListEntry(g, b.units))
	}
	return snapshot, nil
}
