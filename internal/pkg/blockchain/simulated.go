package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

type simulatedGame struct {
	record model.GameRecord
	winner common.Address
}

// SimulatedGateway is an in-memory DiceGame. It keeps the contract's rules
// (sequential ids, equal stakes, 10% fee to the treasury, refund after 24
// hours) and reverts with the contract's messages at submission time.
type SimulatedGateway struct {
	mu sync.Mutex

	token    common.Address
	sender   common.Address
	treasury common.Address
	now      func() time.Time
	roll     func() bool

	games       []*simulatedGame
	balances    map[common.Address]map[common.Address]*big.Int
	allowances  map[common.Address]*big.Int
	autoApprove bool
	txs         map[common.Hash]struct{}
	readErrors  map[uint64]error
	nonce       uint64
}

func NewSimulatedGateway(token common.Address, sender common.Address, now func() time.Time) *SimulatedGateway {
	if now == nil {
		now = time.Now
	}
	return &SimulatedGateway{
		token:       token,
		sender:      sender,
		treasury:    common.HexToAddress("0x000000000000000000000000000000000000fee0"),
		now:         now,
		roll:        func() bool { return rand.Intn(2) == 0 },
		balances:    map[common.Address]map[common.Address]*big.Int{},
		allowances:  map[common.Address]*big.Int{},
		autoApprove: true,
		txs:         map[common.Hash]struct{}{},
		readErrors:  map[uint64]error{},
	}
}

// UseSender switches the account that signs subsequent writes.
func (s *SimulatedGateway) UseSender(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = addr
}

// SetRoll replaces the coin flip deciding whether player one wins.
func (s *SimulatedGateway) SetRoll(roll func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roll = roll
}

// SetAutoApprove controls whether token writes approve the stake first, the
// way EthGateway does.
func (s *SimulatedGateway) SetAutoApprove(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoApprove = on
}

func (s *SimulatedGateway) Fund(owner common.Address, asset model.Asset, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(s.assetKey(asset), owner, amount)
}

func (s *SimulatedGateway) Balance(owner common.Address, asset model.Asset) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balanceOf(s.assetKey(asset), owner))
}

func (s *SimulatedGateway) TreasuryBalance(asset model.Asset) *big.Int {
	return s.Balance(s.treasury, asset)
}

// FailRead makes batched and single reads of id fail with err.
func (s *SimulatedGateway) FailRead(id uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrors[id] = err
}

// Seed appends a record as is, bypassing balance checks.
func (s *SimulatedGateway) Seed(record model.GameRecord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Id = uint64(len(s.games))
	if record.Stake == nil {
		record.Stake = new(big.Int)
	}
	s.games = append(s.games, &simulatedGame{record: record})
	return record.Id
}

func (s *SimulatedGateway) GameCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.games)), nil
}

func (s *SimulatedGateway) Games(ctx context.Context, ids []uint64) []FetchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]FetchResult, len(ids))
	for i, id := range ids {
		results[i].Id = id
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Record, results[i].Err = s.read(id)
	}
	return results
}

func (s *SimulatedGateway) Game(ctx context.Context, id uint64) (*model.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *SimulatedGateway) CreateGame(ctx context.Context, stake *big.Int, asset model.Asset) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if stake == nil || stake.Sign() <= 0 {
		return common.Hash{}, errors.New("execution reverted: Stake must be greater than 0")
	}
	key := s.assetKey(asset)
	s.approve(key, stake)
	if err := s.pull(key, s.sender, stake); err != nil {
		return common.Hash{}, err
	}

	record := model.GameRecord{
		Id:        uint64(len(s.games)),
		Player1:   s.sender,
		Asset:     model.AssetFromContract(key),
		Stake:     new(big.Int).Set(stake),
		StartTime: uint64(s.now().Unix()),
		IsActive:  true,
	}
	s.games = append(s.games, &simulatedGame{record: record})
	return s.include(), nil
}

func (s *SimulatedGateway) JoinGame(ctx context.Context, id uint64, stake *big.Int, asset model.Asset) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.game(id)
	if err != nil {
		return common.Hash{}, err
	}
	if !g.record.IsOpen() {
		return common.Hash{}, errors.New("execution reverted: Game not active")
	}
	key := s.assetKey(asset)
	if key != g.record.Asset.Token {
		return common.Hash{}, errors.New("execution reverted: Stake mismatch: wrong asset")
	}
	if key == (common.Address{}) && (stake == nil || stake.Cmp(g.record.Stake) != 0) {
		return common.Hash{}, errors.New("execution reverted: Stake mismatch")
	}
	s.approve(key, stake)
	if err := s.pull(key, s.sender, g.record.Stake); err != nil {
		return common.Hash{}, err
	}

	g.record.Player2 = s.sender
	g.record.IsActive = false

	pot := new(big.Int).Mul(g.record.Stake, big.NewInt(2))
	payout := g.record.Payout()
	s.credit(key, s.treasury, new(big.Int).Sub(pot, payout))
	if s.roll() {
		g.winner = g.record.Player1
	} else {
		g.winner = g.record.Player2
	}
	s.credit(key, g.winner, payout)

	return s.include(), nil
}

func (s *SimulatedGateway) Refund(ctx context.Context, id uint64) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.game(id)
	if err != nil {
		return common.Hash{}, err
	}
	if !g.record.IsOpen() {
		return common.Hash{}, errors.New("execution reverted: Game not active")
	}
	if g.record.Player1 != s.sender {
		return common.Hash{}, errors.New("execution reverted: Not game creator")
	}
	if !g.record.CanRefund(s.now()) {
		return common.Hash{}, errors.New("execution reverted: Wait 24 hours")
	}

	g.record.IsActive = false
	s.credit(g.record.Asset.Token, g.record.Player1, g.record.Stake)
	return s.include(), nil
}

func (s *SimulatedGateway) Await(ctx context.Context, hash common.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[hash]; !ok {
		return fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	return nil
}

// Winner returns the address paid out for a resolved game.
func (s *SimulatedGateway) Winner(id uint64) (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.game(id)
	if err != nil || g.winner == (common.Address{}) {
		return common.Address{}, false
	}
	return g.winner, true
}

func (s *SimulatedGateway) read(id uint64) (*model.GameRecord, error) {
	if err, ok := s.readErrors[id]; ok {
		return nil, err
	}
	g, err := s.game(id)
	if err != nil {
		return nil, err
	}
	record := g.record
	record.Stake = new(big.Int).Set(g.record.Stake)
	return &record, nil
}

func (s *SimulatedGateway) game(id uint64) (*simulatedGame, error) {
	if id >= uint64(len(s.games)) {
		return nil, fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}
	return s.games[id], nil
}

func (s *SimulatedGateway) assetKey(asset model.Asset) common.Address {
	if asset.IsNative() {
		return common.Address{}
	}
	if asset.Token != (common.Address{}) {
		return asset.Token
	}
	return s.token
}

func (s *SimulatedGateway) pull(key, from common.Address, amount *big.Int) error {
	if key != (common.Address{}) {
		allowance := s.allowances[from]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return errors.New("execution reverted: ERC20: insufficient allowance")
		}
		if s.balanceOf(key, from).Cmp(amount) < 0 {
			return errors.New("execution reverted: ERC20: transfer amount exceeds balance")
		}
		allowance.Sub(allowance, amount)
	} else if s.balanceOf(key, from).Cmp(amount) < 0 {
		return errors.New("insufficient funds for gas * price + value")
	}
	s.credit(key, from, new(big.Int).Neg(amount))
	return nil
}

func (s *SimulatedGateway) approve(key common.Address, amount *big.Int) {
	if key == (common.Address{}) || !s.autoApprove || amount == nil {
		return
	}
	s.allowances[s.sender] = new(big.Int).Set(amount)
}

// Approve sets the token allowance the current sender grants the contract.
func (s *SimulatedGateway) Approve(amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[s.sender] = new(big.Int).Set(amount)
}

func (s *SimulatedGateway) balanceOf(key, owner common.Address) *big.Int {
	if b, ok := s.balances[key][owner]; ok {
		return b
	}
	return new(big.Int)
}

func (s *SimulatedGateway) credit(key, owner common.Address, amount *big.Int) {
	if s.balances[key] == nil {
		s.balances[key] = map[common.Address]*big.Int{}
	}
	s.balances[key][owner] = new(big.Int).Add(s.balanceOf(key, owner), amount)
}

func (s *SimulatedGateway) include() common.Hash {
	s.nonce++
	hash := crypto.Keccak256Hash(s.sender.Bytes(), new(big.Int).SetUint64(s.nonce).Bytes())
	s.txs[hash] = struct{}{}
	return hash
}
