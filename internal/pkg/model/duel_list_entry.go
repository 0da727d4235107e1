package model

import "time"

type DuelListEntry struct {
	Id           uint64    `json:"id"`
	Host         string    `json:"host"`
	HostShort    string    `json:"hostShort"`
	Asset        AssetKind `json:"asset"`
	AssetSymbol  string    `json:"assetSymbol"`
	Stake        string    `json:"stake"`
	StakeRaw     string    `json:"stakeRaw"`
	StartTime    uint64    `json:"startTime"`
	RefundableAt time.Time `json:"refundableAt"`
}

func NewDuelListEntry(g GameRecord, units AssetUnits) DuelListEntry {
	return DuelListEntry{
		Id:           g.Id,
		Host:         g.Player1.Hex(),
		HostShort:    ShortAddress(g.Player1),
		Asset:        g.Asset.Kind,
		AssetSymbol:  units.Symbol(g.Asset.Kind),
		Stake:        FormatUnits(g.Stake, units.Decimals(g.Asset.Kind)),
		StakeRaw:     g.Stake.String(),
		StartTime:    g.StartTime,
		RefundableAt: g.RefundableAt(),
	}
}

type DirectorySnapshot struct {
	Total       uint64          `json:"total"`
	Window      uint64          `json:"window"`
	Entries     []DuelListEntry `json:"entries"`
	RefreshedAt time.Time       `json:"refreshedAt"`
}

func (s DirectorySnapshot) Find(id uint64) (DuelListEntry, bool) {
	for _, e := range s.Entries {
		if e.Id == id {
			return e, true
		}
	}
	return DuelListEntry{}, false
}
