package action

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 3 * time.Minute

type Refresher interface {
	Trigger()
}

type Notifier interface {
	Publish(topic string, event any)
}

type EventPublisher interface {
	Publish(ctx context.Context, message pubsub.Publishable)
}

type Config struct {
	Units          model.AssetUnits
	TokenAddress   common.Address
	MinStakeNative string
	MinStakeToken  string
	Timeout        time.Duration
}

// Request describes one user intent. GameId is ignored for create, stake
// and asset are ignored for refund.
type Request struct {
	Kind        model.ActionKind
	GameId      uint64
	StakeAmount string
	Asset       model.AssetKind
}

type plan struct {
	action *model.Action
	send   func(ctx context.Context) (common.Hash, error)
}

// Submitter drives create, join and refund transactions from validation to
// settlement. Every action is tried once; a failed action stays failed.
type Submitter struct {
	gateway blockchain.Gateway
	actions Log

	units     model.AssetUnits
	token     common.Address
	minNative *big.Int
	minToken  *big.Int
	timeout   time.Duration

	refresher Refresher
	hub       Notifier
	events    EventPublisher
	now       func() time.Time

	running sync.WaitGroup
}

func NewSubmitter(gateway blockchain.Gateway, actions Log, cfg Config) (*Submitter, error) {
	minNative, err := parseMinimum(cfg.MinStakeNative, model.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("MIN_STAKE_NATIVE: %w", err)
	}
	minToken, err := parseMinimum(cfg.MinStakeToken, cfg.Units.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("MIN_STAKE_TOKEN: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Submitter{
		gateway:   gateway,
		actions:   actions,
		units:     cfg.Units,
		token:     cfg.TokenAddress,
		minNative: minNative,
		minToken:  minToken,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

func (s *Submitter) WithRefresher(r Refresher) *Submitter {
	s.refresher = r
	return s
}

func (s *Submitter) WithNotifier(n Notifier) *Submitter {
	s.hub = n
	return s
}

func (s *Submitter) WithEvents(p EventPublisher) *Submitter {
	s.events = p
	return s
}

func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	s.now = now
	return s
}

func (s *Submitter) Create(ctx context.Context, stakeAmount string, asset model.AssetKind) (model.Action, error) {
	return s.Submit(ctx, Request{Kind: model.ActionCreate, StakeAmount: stakeAmount, Asset: asset})
}

func (s *Submitter) Join(ctx context.Context, gameId uint64, stakeAmount string, asset model.AssetKind) (model.Action, error) {
	return s.Submit(ctx, Request{Kind: model.ActionJoin, GameId: gameId, StakeAmount: stakeAmount, Asset: asset})
}

func (s *Submitter) Refund(ctx context.Context, gameId uint64) (model.Action, error) {
	return s.Submit(ctx, Request{Kind: model.ActionRefund, GameId: gameId})
}

// Submit runs req to completion and returns the settled action. The error is
// an *Error whenever the action ended as failed.
func (s *Submitter) Submit(ctx context.Context, req Request) (model.Action, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return *p.action, err
	}
	s.markPending(ctx, p.action)
	err = s.execute(ctx, p)
	return *p.action, err
}

// SubmitAsync validates req and returns the pending action right away. The
// transaction settles in the background under its own timeout, so a client
// that goes away never cancels it.
func (s *Submitter) SubmitAsync(ctx context.Context, req Request) (model.Action, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return *p.action, err
	}
	s.markPending(ctx, p.action)
	pending := *p.action

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		_ = s.execute(execCtx, p)
	}()

	return pending, nil
}

// Wait blocks until every background action has settled.
func (s *Submitter) Wait() {
	s.running.Wait()
}

func (s *Submitter) Find(ctx context.Context, id string) (model.Action, error) {
	return findAction(ctx, s.actions, id)
}

func (s *Submitter) List(ctx context.Context, offset, limit int) ([]model.Action, int64, error) {
	return s.actions.List(ctx, offset, limit)
}

func (s *Submitter) prepare(ctx context.Context, req Request) (*plan, error) {
	var gameId *uint64
	if req.Kind != model.ActionCreate {
		id := req.GameId
		gameId = &id
	}
	a := model.NewAction(req.Kind, gameId, req.StakeAmount, req.Asset, s.now())
	if req.Kind == model.ActionRefund {
		a.Asset = ""
		a.StakeAmount = ""
	}
	p := &plan{action: a}

	switch req.Kind {
	case model.ActionCreate, model.ActionJoin:
		stake, asset, err := s.validateStake(req.StakeAmount, req.Asset, req.Kind == model.ActionCreate)
		if err != nil {
			return p, s.reject(ctx, a, model.ReasonInvalidStake, err)
		}
		a.Asset = asset.Kind
		if req.Kind == model.ActionCreate {
			p.send = func(ctx context.Context) (common.Hash, error) {
				return s.gateway.CreateGame(ctx, stake, asset)
			}
		} else {
			p.send = func(ctx context.Context) (common.Hash, error) {
				return s.gateway.JoinGame(ctx, req.GameId, stake, asset)
			}
		}

	case model.ActionRefund:
		if reason, err := s.checkRefund(ctx, req.GameId); err != nil {
			return p, s.reject(ctx, a, reason, err)
		}
		p.send = func(ctx context.Context) (common.Hash, error) {
			return s.gateway.Refund(ctx, req.GameId)
		}

	default:
		return p, s.reject(ctx, a, model.ReasonInvalidStake, fmt.Errorf("unknown action kind %q", req.Kind))
	}

	s.save(ctx, a)
	return p, nil
}

// validateStake parses amount in the asset's units. The minimum applies to new
// duels only; a join sends whatever the host staked.
func (s *Submitter) validateStake(amount string, kind model.AssetKind, enforceMinimum bool) (*big.Int, model.Asset, error) {
	k, ok := model.ParseAssetKind(string(kind))
	if !ok {
		return nil, model.Asset{}, fmt.Errorf("unknown asset %q", kind)
	}
	asset := model.NativeAsset()
	minimum := s.minNative
	if k == model.AssetToken {
		asset = model.TokenAsset(s.token)
		minimum = s.minToken
	}

	stake, err := model.ParseUnits(amount, s.units.Decimals(k))
	if err != nil {
		return nil, asset, err
	}
	if stake.Sign() <= 0 {
		return nil, asset, errors.New("stake must be positive")
	}
	if enforceMinimum && stake.Cmp(minimum) < 0 {
		return nil, asset, fmt.Errorf("stake below minimum of %s", model.FormatUnits(minimum, s.units.Decimals(k)))
	}
	return stake, asset, nil
}

// checkRefund reads the game fresh and refuses refunds the contract would
// revert, without sending anything.
func (s *Submitter) checkRefund(ctx context.Context, gameId uint64) (model.FailureReason, error) {
	record, err := s.gateway.Game(ctx, gameId)
	if err != nil {
		return blockchain.Classify(err), err
	}
	if !record.IsOpen() {
		return model.ReasonNotFound, fmt.Errorf("game %d is not open", gameId)
	}
	if !record.CanRefund(s.now()) {
		return model.ReasonTooEarly, fmt.Errorf("game %d is refundable at %s", gameId, record.RefundableAt().Format(time.RFC3339))
	}
	return "", nil
}

func (s *Submitter) reject(ctx context.Context, a *model.Action, reason model.FailureReason, cause error) error {
	_ = a.Fail(reason, s.now())
	log.Info().Str("action_id", a.Id.String()).Str("reason", string(reason)).Err(cause).Msg("Action rejected before dispatch")
	s.save(ctx, a)
	s.notify(a)
	return failure(reason, cause)
}

func (s *Submitter) markPending(ctx context.Context, a *model.Action) {
	_ = a.Transition(model.StatusPending, s.now())
	s.save(ctx, a)
	s.notify(a)
}

// execute sends the transaction and waits for it. It runs exactly once per
// action and always leaves the action confirmed or failed.
func (s *Submitter) execute(ctx context.Context, p *plan) error {
	a := p.action
	logger := log.With().Str("action_id", a.Id.String()).Str("kind", string(a.Kind)).Logger()

	hash, err := p.send(ctx)
	if err == nil {
		a.TxHash = hash.Hex()
		s.save(ctx, a)
		logger.Info().Str("tx_hash", a.TxHash).Msg("Action dispatched")
		err = s.gateway.Await(ctx, hash)
	}

	if err != nil {
		reason := blockchain.Classify(err)
		_ = a.Fail(reason, s.now())
		logger.Warn().Err(err).Str("reason", string(reason)).Msg("Action failed")
		s.settled(ctx, a)
		return failure(reason, err)
	}

	if a.Kind == model.ActionJoin && a.GameId != nil {
		if record, readErr := s.gateway.Game(ctx, *a.GameId); readErr == nil {
			a.Outcome = record
		} else {
			logger.Warn().Err(readErr).Uint64("game_id", *a.GameId).Msg("Cannot read duel outcome")
		}
	}
	_ = a.Transition(model.StatusConfirmed, s.now())
	logger.Info().Str("tx_hash", a.TxHash).Msg("Action confirmed")
	s.settled(ctx, a)
	return nil
}

func (s *Submitter) settled(ctx context.Context, a *model.Action) {
	s.save(ctx, a)
	s.notify(a)
	if s.refresher != nil {
		s.refresher.Trigger()
	}
	if s.events != nil {
		s.events.Publish(ctx, blockchain.NewActionEvent(*a))
	}
}

func (s *Submitter) save(ctx context.Context, a *model.Action) {
	if err := s.actions.Save(context.WithoutCancel(ctx), *a); err != nil {
		log.Error().Err(err).Str("action_id", a.Id.String()).Msg("Cannot save action")
	}
}

func (s *Submitter) notify(a *model.Action) {
	if s.hub != nil {
		s.hub.Publish(ws.ActionTopic(a.Id.String()), *a)
	}
}

func parseMinimum(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return new(big.Int), nil
	}
	return model.ParseUnits(amount, decimals)
}
