package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"gorm.io/gorm"
)

var ErrActionNotFound = errors.New("action not found")

// Log records every action and its latest state.
type Log interface {
	Save(ctx context.Context, a model.Action) error
	Find(ctx context.Context, id uuid.UUID) (model.Action, error)
	List(ctx context.Context, offset, limit int) ([]model.Action, int64, error)
}

type MemoryLog struct {
	mu      sync.RWMutex
	actions map[uuid.UUID]model.Action
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{actions: map[uuid.UUID]model.Action{}}
}

func (m *MemoryLog) Save(_ context.Context, a model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.Id] = a
	return nil
}

func (m *MemoryLog) Find(_ context.Context, id uuid.UUID) (model.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return model.Action{}, ErrActionNotFound
	}
	return a, nil
}

func (m *MemoryLog) List(_ context.Context, offset, limit int) ([]model.Action, int64, error) {
	m.mu.RLock()
	all := make([]model.Action, 0, len(m.actions))
	for _, a := range m.actions {
		all = append(all, a)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Id.String() > all[j].Id.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset < 0 || offset >= len(all) {
		return []model.Action{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

// GormLog persists actions in the duel_action table.
type GormLog struct {
	db *gorm.DB
}

func NewGormLog(db *gorm.DB) *GormLog {
	return &GormLog{db: db}
}

func (g *GormLog) Migrate() error {
	return g.db.AutoMigrate(&model.Action{})
}

func (g *GormLog) Save(ctx context.Context, a model.Action) error {
	return g.db.WithContext(ctx).Save(&a).Error
}

func (g *GormLog) Find(ctx context.Context, id uuid.UUID) (model.Action, error) {
	var a model.Action
	err := g.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Action{}, ErrActionNotFound
	}
	return a, err
}

func (g *GormLog) List(ctx context.Context, offset, limit int) ([]model.Action, int64, error) {
	actions := []model.Action{}
	var total int64

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Action{}).Count(&total).Error; err != nil {
			return err
		}
		return tx.Order("created_at DESC").Offset(offset).Limit(limit).Find(&actions).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}

func findAction(ctx context.Context, actions Log, id string) (model.Action, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.Action{}, fmt.Errorf("%w: %v", ErrActionNotFound, err)
	}
	return actions.Find(ctx, uid)
}
