package directory

import (
	"context"
	"sync"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"github.com/go-co-op/gocron/v2"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

const triggerTimeout = 30 * time.Second

type Publisher interface {
	Publish(topic string, event any)
}

// Refresher rebuilds the directory, stores the snapshot and pushes it to
// websocket listeners. Refreshes run one at a time so an older build never
// overwrites a newer one.
type Refresher struct {
	builder *Builder
	store   SnapshotStore
	hub     Publisher
	now     func() time.Time

	refreshMutex sync.Mutex
	built        uint64

	publishMutex sync.Mutex
	published    uint64

	listeners []func(model.DirectorySnapshot)
	triggered sync.WaitGroup
}

func NewRefresher(builder *Builder, store SnapshotStore, hub Publisher, now func() time.Time) *Refresher {
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		builder: builder,
		store:   store,
		hub:     hub,
		now:     now,
	}
}

// OnRefresh registers fn to run after every successful refresh. It must be
// called before the first refresh.
func (r *Refresher) OnRefresh(fn func(model.DirectorySnapshot)) {
	r.listeners = append(r.listeners, fn)
}

func (r *Refresher) Latest(ctx context.Context) (model.DirectorySnapshot, error) {
	return r.store.Latest(ctx)
}

// Refresh builds a new snapshot. On failure the previous snapshot stays.
// Listeners are notified after the refresh lock is released, so a slow
// listener never delays the next build.
func (r *Refresher) Refresh(ctx context.Context) (model.DirectorySnapshot, error) {
	snapshot, seq, err := r.build(ctx)
	if err != nil {
		return model.DirectorySnapshot{}, err
	}
	r.publish(seq, snapshot)
	return snapshot, nil
}

func (r *Refresher) build(ctx context.Context) (model.DirectorySnapshot, uint64, error) {
	r.refreshMutex.Lock()
	defer r.refreshMutex.Unlock()

	snapshot, err := r.builder.Build(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Directory refresh failed, keeping previous snapshot")
		return model.DirectorySnapshot{}, 0, err
	}
	snapshot.RefreshedAt = r.now().UTC()

	if err := r.store.Save(ctx, snapshot); err != nil {
		log.Error().Err(err).Msg("Cannot store directory snapshot")
		return model.DirectorySnapshot{}, 0, err
	}
	log.Debug().Uint64("total", snapshot.Total).Int("open", len(snapshot.Entries)).Msg("Directory refreshed")

	r.built++
	return snapshot, r.built, nil
}

// publish pushes snapshot unless a newer one has already gone out.
func (r *Refresher) publish(seq uint64, snapshot model.DirectorySnapshot) {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	if seq <= r.published {
		return
	}
	r.published = seq

	if r.hub != nil {
		r.hub.Publish(ws.DirectoryTopic, snapshot)
	}
	for _, fn := range r.listeners {
		fn(snapshot)
	}
}

// Trigger refreshes in the background, detached from any request.
func (r *Refresher) Trigger() {
	r.triggered.Add(1)
	go func() {
		defer r.triggered.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		_, _ = r.Refresh(ctx)
	}()
}

// Wait blocks until every triggered refresh has finished.
func (r *Refresher) Wait() {
	r.triggered.Wait()
}

// Schedule registers the periodic poll on scheduler. A poll that overruns
// the interval is rescheduled rather than stacked.
func (r *Refresher) Schedule(scheduler gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval+triggerTimeout)
			defer cancel()
			_, _ = r.Refresh(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("directory-refresh"),
	)
}

// RefreshSubscription refreshes the directory whenever a message arrives on
// subscriptionId. The payload is ignored.
func (r *Refresher) RefreshSubscription(subscriptionId string) pubsub.SubscriptionHandler {
	return pubsub.SubscriptionHandler{
		SubscriptionId: subscriptionId,
		Handler: func(ctx context.Context, message *gcpubsub.Message) {
			message.Ack()
			log.Debug().Str("message_id", message.ID).Msg("Directory refresh requested")
			r.Trigger()
		},
	}
}
