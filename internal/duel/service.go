package duel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/kollektive-hackathon/luckybase-backend/internal/directory"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

const (
	duelNotFound       = "error.duel.not-found"
	duelStaleSelection = "error.duel.stale-selection"
)

type SnapshotSource interface {
	Latest(ctx context.Context) (model.DirectorySnapshot, error)
}

type SessionEventType string

const (
	SessionView  SessionEventType = "view"
	SessionStale SessionEventType = "stale"
)

// SessionEvent is pushed to everyone watching a duel room.
type SessionEvent struct {
	Type    SessionEventType `json:"type"`
	View    *View            `json:"view,omitempty"`
	Problem *reject.Problem  `json:"problem,omitempty"`
}

type Service struct {
	snapshots SnapshotSource
	gateway   blockchain.Gateway
	hub       directory.Publisher
	units     model.AssetUnits
	now       func() time.Time

	watchMutex sync.Mutex
	watched    map[uint64]int
}

func NewService(snapshots SnapshotSource, gateway blockchain.Gateway, hub directory.Publisher, units model.AssetUnits, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		snapshots: snapshots,
		gateway:   gateway,
		hub:       hub,
		units:     units,
		now:       now,
		watched:   map[uint64]int{},
	}
}

func (s *Service) Directory(ctx context.Context) (model.DirectorySnapshot, *reject.ProblemWithTrace) {
	snapshot, err := s.snapshots.Latest(ctx)
	if err != nil {
		return model.DirectorySnapshot{}, snapshotProblem(err)
	}
	return snapshot, nil
}

func (s *Service) View(ctx context.Context, id uint64) (View, *reject.ProblemWithTrace) {
	snapshot, err := s.snapshots.Latest(ctx)
	if err != nil {
		return View{}, snapshotProblem(err)
	}
	v, err := Resolve(snapshot, id, s.now(), s.units)
	if err != nil {
		return View{}, &reject.ProblemWithTrace{Problem: NotFoundProblem(id), Cause: err}
	}
	return v, nil
}

// Record reads the game straight from the chain, so it also shows duels that
// have already been resolved.
func (s *Service) Record(ctx context.Context, id uint64) (View, *reject.ProblemWithTrace) {
	record, err := s.gateway.Game(ctx, id)
	if errors.Is(err, blockchain.ErrGameNotFound) {
		return View{}, &reject.ProblemWithTrace{Problem: NotFoundProblem(id), Cause: err}
	}
	if err != nil {
		return View{}, reject.ChainProblem(err)
	}
	return NewView(*record, s.now(), s.units), nil
}

func (s *Service) Watch(id uint64) {
	s.watchMutex.Lock()
	defer s.watchMutex.Unlock()
	s.watched[id]++
}

func (s *Service) Unwatch(id uint64) {
	s.watchMutex.Lock()
	defer s.watchMutex.Unlock()
	if s.watched[id] <= 1 {
		delete(s.watched, id)
		return
	}
	s.watched[id]--
}

// SessionEvent resolves the event a watcher of id should see for snapshot.
func (s *Service) SessionEvent(snapshot model.DirectorySnapshot, id uint64) SessionEvent {
	v, err := Session{Id: id}.Sync(snapshot, s.now(), s.units)
	if err != nil {
		problem := StaleSelectionProblem(id)
		return SessionEvent{Type: SessionStale, Problem: &problem}
	}
	return SessionEvent{Type: SessionView, View: &v}
}

// Broadcast pushes a fresh session event to every watched duel room. It is
// hooked to directory refreshes; rooms never poll on their own.
func (s *Service) Broadcast(snapshot model.DirectorySnapshot) {
	if s.hub == nil {
		return
	}
	s.watchMutex.Lock()
	ids := make([]uint64, 0, len(s.watched))
	for id := range s.watched {
		ids = append(ids, id)
	}
	s.watchMutex.Unlock()

	for _, id := range ids {
		event := s.SessionEvent(snapshot, id)
		if event.Type == SessionStale {
			log.Debug().Uint64("game_id", id).Msg("Watched duel left the directory")
		}
		s.hub.Publish(ws.DuelTopic(id), event)
	}
}

func snapshotProblem(err error) *reject.ProblemWithTrace {
	if errors.Is(err, directory.ErrNoSnapshot) {
		return &reject.ProblemWithTrace{Problem: reject.UnavailableProblem("directory is still loading"), Cause: err}
	}
	return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
}

func NotFoundProblem(id uint64) reject.Problem {
	return reject.NewProblem().
		WithTitle("Duel not found").
		WithDetail("The duel is not open or is outside the directory window").
		WithStatus(http.StatusNotFound).
		WithCode(duelNotFound).
		WithParam("id", formatId(id)).
		Build()
}

func StaleSelectionProblem(id uint64) reject.Problem {
	return reject.NewProblem().
		WithTitle("Duel no longer open").
		WithStatus(http.StatusConflict).
		WithCode(duelStaleSelection).
		WithParam("id", formatId(id)).
		Build()
}
