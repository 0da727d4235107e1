package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionJoin   ActionKind = "join"
	ActionRefund ActionKind = "refund"
)

type ActionStatus string

const (
	StatusIdle      ActionStatus = "idle"
	StatusPending   ActionStatus = "pending"
	StatusConfirmed ActionStatus = "confirmed"
	StatusFailed    ActionStatus = "failed"
)

type FailureReason string

const (
	ReasonInvalidStake          FailureReason = "InvalidStake"
	ReasonInsufficientFunds     FailureReason = "InsufficientFunds"
	ReasonInsufficientAllowance FailureReason = "InsufficientAllowance"
	ReasonUserRejected          FailureReason = "UserRejected"
	ReasonTooEarly              FailureReason = "TooEarly"
	ReasonStakeMismatch         FailureReason = "StakeMismatch"
	ReasonNotFound              FailureReason = "NotFound"
	ReasonNetworkError          FailureReason = "NetworkError"
)

type Action struct {
	Id          uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	Kind        ActionKind    `json:"kind"`
	GameId      *uint64       `json:"gameId,omitempty"`
	StakeAmount string        `json:"stakeAmount,omitempty"`
	Asset       AssetKind     `json:"asset,omitempty"`
	Status      ActionStatus  `json:"status"`
	Reason      FailureReason `json:"reason,omitempty"`
	TxHash      string        `json:"txHash,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Outcome     *GameRecord   `json:"outcome,omitempty" gorm:"-"`
}

func (Action) TableName() string {
	return "duel_action"
}

func NewAction(kind ActionKind, gameId *uint64, stakeAmount string, asset AssetKind, now time.Time) *Action {
	return &Action{
		Id:          uuid.New(),
		Kind:        kind,
		GameId:      gameId,
		StakeAmount: stakeAmount,
		Asset:       asset,
		Status:      StatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s ActionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// An action only moves forward: idle to pending or failed, pending to
// confirmed or failed.
func (s ActionStatus) CanMoveTo(next ActionStatus) bool {
	switch s {
	case StatusIdle:
		return next == StatusPending || next == StatusFailed
	case StatusPending:
		return next == StatusConfirmed || next == StatusFailed
	}
	return false
}

func (a *Action) Transition(next ActionStatus, now time.Time) error {
	if !a.Status.CanMoveTo(next) {
		return fmt.Errorf("action %s cannot move from %s to %s", a.Id, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

func (a *Action) Fail(reason FailureReason, now time.Time) error {
	if err := a.Transition(StatusFailed, now); err != nil {
		return err
	}
	a.Reason = reason
	return nil
}
