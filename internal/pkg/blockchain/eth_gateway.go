package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jpillora/backoff"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type batchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

type EthGatewayConfig struct {
	RpcUrl           string
	ContractAddress  string
	TokenAddress     string
	SignerPrivateKey string
	BatchSize        int
	Parallelism      int
}

// EthGateway talks to a deployed DiceGame through a JSON-RPC node.
type EthGateway struct {
	client   *ethclient.Client
	batch    batchCaller
	address  common.Address
	token    common.Address
	gameAbi  abi.ABI
	erc20Abi abi.ABI
	contract *bind.BoundContract
	signer   *Signer

	batchSize   int
	parallelism int

	// writes share one account, so nonces are assigned one at a time
	sendMu sync.Mutex
}

func NewEthGateway(ctx context.Context, cfg EthGatewayConfig) (*EthGateway, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RpcUrl, err)
	}

	gw, err := newEthGateway(client.Client(), cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	gw.client = client
	gw.contract = bind.NewBoundContract(gw.address, gw.gameAbi, client, client, client)

	if cfg.SignerPrivateKey != "" {
		gw.signer, err = NewSigner(ctx, client, cfg.SignerPrivateKey)
		if err != nil {
			client.Close()
			return nil, err
		}
		log.Info().Str("signer", gw.signer.Address.Hex()).Msg("Loaded transaction signer")
	} else {
		log.Warn().Msg("SIGNER_PRIVATE_KEY not set, gateway is read only")
	}

	return gw, nil
}

func newEthGateway(batch batchCaller, cfg EthGatewayConfig) (*EthGateway, error) {
	gameAbi, err := abi.JSON(strings.NewReader(diceGameABI))
	if err != nil {
		return nil, err
	}
	erc20Abi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}

	gw := &EthGateway{
		batch:       batch,
		address:     common.HexToAddress(cfg.ContractAddress),
		gameAbi:     gameAbi,
		erc20Abi:    erc20Abi,
		batchSize:   cfg.BatchSize,
		parallelism: cfg.Parallelism,
	}
	if common.IsHexAddress(cfg.TokenAddress) {
		gw.token = common.HexToAddress(cfg.TokenAddress)
	}
	if gw.batchSize <= 0 {
		gw.batchSize = 10
	}
	if gw.parallelism <= 0 {
		gw.parallelism = 4
	}
	return gw, nil
}

func (e *EthGateway) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

func (e *EthGateway) GameCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "nextGameId"); err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, errors.New("nextGameId returned no value")
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("unexpected nextGameId value %v", out[0])
	}
	return n.Uint64(), nil
}

func (e *EthGateway) Games(ctx context.Context, ids []uint64) []FetchResult {
	results := make([]FetchResult, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(e.parallelism)
	for start := 0; start < len(ids); start += e.batchSize {
		start := start
		end := min(start+e.batchSize, len(ids))
		g.Go(func() error {
			e.fetchChunk(ctx, ids[start:end], results[start:end])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *EthGateway) Game(ctx context.Context, id uint64) (*model.GameRecord, error) {
	res := e.Games(ctx, []uint64{id})[0]
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Record, nil
}

func (e *EthGateway) fetchChunk(ctx context.Context, ids []uint64, results []FetchResult) {
	elems := make([]rpc.BatchElem, len(ids))
	outs := make([]hexutil.Bytes, len(ids))
	for i, id := range ids {
		results[i].Id = id
		data, err := e.gameAbi.Pack("games", new(big.Int).SetUint64(id))
		if err != nil {
			results[i].Err = err
			continue
		}
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{"to": e.address, "data": hexutil.Bytes(data)},
				"latest",
			},
			Result: &outs[i],
		}
	}

	if err := e.batch.BatchCallContext(ctx, elems); err != nil {
		for i := range results {
			results[i].Err = err
		}
		return
	}

	for i := range elems {
		if results[i].Err != nil {
			continue
		}
		if elems[i].Error != nil {
			results[i].Err = elems[i].Error
			continue
		}
		results[i].Record, results[i].Err = e.decodeGame(ids[i], outs[i])
	}
}

func (e *EthGateway) decodeGame(id uint64, data []byte) (*model.GameRecord, error) {
	values, err := e.gameAbi.Unpack("games", data)
	if err != nil {
		return nil, fmt.Errorf("decode game %d: %w", id, err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("decode game %d: got %d fields", id, len(values))
	}

	player1, ok1 := values[0].(common.Address)
	player2, ok2 := values[1].(common.Address)
	token, ok3 := values[2].(common.Address)
	stake, ok4 := values[3].(*big.Int)
	startTime, ok5 := values[4].(*big.Int)
	isActive, ok6 := values[5].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return nil, fmt.Errorf("decode game %d: unexpected field types", id)
	}
	// unwritten mapping slots read back as zero values
	if player1 == (common.Address{}) {
		return nil, fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}

	return &model.GameRecord{
		Id:        id,
		Player1:   player1,
		Player2:   player2,
		Asset:     model.AssetFromContract(token),
		Stake:     stake,
		StartTime: startTime.Uint64(),
		IsActive:  isActive,
	}, nil
}

func (e *EthGateway) CreateGame(ctx context.Context, stake *big.Int, asset model.Asset) (common.Hash, error) {
	if asset.IsNative() {
		return e.transact(ctx, e.contract, stake, "createGameETH")
	}
	if err := e.ensureAllowance(ctx, asset, stake); err != nil {
		return common.Hash{}, err
	}
	return e.transact(ctx, e.contract, nil, "createGameUSDC", stake)
}

func (e *EthGateway) JoinGame(ctx context.Context, id uint64, stake *big.Int, asset model.Asset) (common.Hash, error) {
	gameId := new(big.Int).SetUint64(id)
	if asset.IsNative() {
		return e.transact(ctx, e.contract, stake, "joinGame", gameId)
	}
	if err := e.ensureAllowance(ctx, asset, stake); err != nil {
		return common.Hash{}, err
	}
	return e.transact(ctx, e.contract, nil, "joinGame", gameId)
}

func (e *EthGateway) Refund(ctx context.Context, id uint64) (common.Hash, error) {
	return e.transact(ctx, e.contract, nil, "refund", new(big.Int).SetUint64(id))
}

func (e *EthGateway) transact(ctx context.Context, contract *bind.BoundContract, value *big.Int, method string, params ...interface{}) (common.Hash, error) {
	if e.signer == nil {
		return common.Hash{}, ErrNoSigner
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	tx, err := contract.Transact(e.signer.transactOpts(ctx, value), method, params...)
	if err != nil {
		return common.Hash{}, err
	}
	log.Info().Str("tx_hash", tx.Hash().Hex()).Str("method", method).Msg("Transaction sent")
	return tx.Hash(), nil
}

// ensureAllowance approves the contract to pull amount of the stake token
// when the current allowance is short, and waits for the approval to land.
func (e *EthGateway) ensureAllowance(ctx context.Context, asset model.Asset, amount *big.Int) error {
	if e.signer == nil {
		return ErrNoSigner
	}
	token := asset.Token
	if token == (common.Address{}) {
		token = e.token
	}
	if token == (common.Address{}) {
		return errors.New("token address not configured")
	}
	erc20 := bind.NewBoundContract(token, e.erc20Abi, e.client, e.client, e.client)

	var out []interface{}
	if err := erc20.Call(&bind.CallOpts{Context: ctx, From: e.signer.Address}, &out, "allowance", e.signer.Address, e.address); err != nil {
		return err
	}
	if current, ok := out[0].(*big.Int); ok && current.Cmp(amount) >= 0 {
		return nil
	}

	hash, err := e.transact(ctx, erc20, nil, "approve", e.address, amount)
	if err != nil {
		return err
	}
	return e.Await(ctx, hash)
}

func (e *EthGateway) Await(ctx context.Context, hash common.Hash) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    15 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		receipt, err := e.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return e.revertError(ctx, hash, receipt)
			}
			log.Debug().Str("tx_hash", hash.Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("Transaction included")
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			log.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("Receipt lookup failed, will retry")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
}

// revertError replays a failed transaction at its block to recover the
// revert reason.
func (e *EthGateway) revertError(ctx context.Context, hash common.Hash, receipt *types.Receipt) error {
	tx, _, err := e.client.TransactionByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
	}
	msg := ethereum.CallMsg{
		From:  e.signer.Address,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	if _, callErr := e.client.CallContract(ctx, msg, receipt.BlockNumber); callErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrReverted, hash.Hex(), callErr)
	}
	return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
}
