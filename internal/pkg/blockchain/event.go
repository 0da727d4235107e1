package blockchain

import (
	"time"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

const ActionEventTopic = "luckybase.duel.actions"

// ActionEvent announces a settled duel action to downstream consumers.
type ActionEvent struct {
	Id        string              `json:"id"`
	ActionId  string              `json:"actionId"`
	Type      model.ActionKind    `json:"type"`
	GameId    *uint64             `json:"gameId,omitempty"`
	Status    model.ActionStatus  `json:"status"`
	Reason    model.FailureReason `json:"reason,omitempty"`
	TxHash    string              `json:"txHash,omitempty"`
	Outcome   *model.GameRecord   `json:"outcome,omitempty"`
	SettledAt time.Time           `json:"settledAt"`
}

func (ActionEvent) GetEventTopicName() string {
	return ActionEventTopic
}

func NewActionEvent(a model.Action) ActionEvent {
	return ActionEvent{
		Id:        uuid.New().String(),
		ActionId:  a.Id.String(),
		Type:      a.Kind,
		GameId:    a.GameId,
		Status:    a.Status,
		Reason:    a.Reason,
		TxHash:    a.TxHash,
		Outcome:   a.Outcome,
		SettledAt: a.UpdatedAt,
	}
}
