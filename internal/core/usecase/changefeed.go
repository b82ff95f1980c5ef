package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
)

const defaultPublishTimeout = 5 * time.Second

type DocumentState struct {
	ID        string                `json:"id"`
	Status    domain.DocumentStatus `json:"status"`
	Progress  float64               `json:"progress"`
	RiskLevel domain.RiskLevel      `json:"risk_level"`
}

type ChangeSnapshot struct {
	Revision  uint64          `json:"revision"`
	Documents []DocumentState `json:"documents"`
}

// ChangeFeed turns store notifications into published snapshots. Bursts of
// mutations collapse into one pending signal, so a slow publisher only ever
// sees the latest state.
type ChangeFeed struct {
	store     ports.DocumentStore
	publisher ports.EventPublisher
	observer  ports.ChangeFeedObserver
	logger    *slog.Logger
	timeout   time.Duration

	pending chan struct{}
	done    chan struct{}
	stop    func()
	once    sync.Once
}

func NewChangeFeed(
	store ports.DocumentStore,
	publisher ports.EventPublisher,
	observer ports.ChangeFeedObserver,
	logger *slog.Logger,
) *ChangeFeed {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeFeed{
		store:     store,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		timeout:   defaultPublishTimeout,
		pending:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the store and publishes until ctx is done or Stop is called.
func (f *ChangeFeed) Start(ctx context.Context) {
	unsubscribe := f.store.Subscribe(f.signal)
	ctx, cancel := context.WithCancel(ctx)
	f.stop = func() {
		unsubscribe()
		cancel()
	}
	go f.run(ctx)
}

func (f *ChangeFeed) signal() {
	select {
	case f.pending <- struct{}{}:
	default:
	}
}

func (f *ChangeFeed) run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.pending:
			f.publish(ctx)
		}
	}
}

func (f *ChangeFeed) publish(ctx context.Context) {
	payload, err := json.Marshal(Snapshot(f.store))
	if err != nil {
		f.logger.Error("marshal change snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	err = f.publisher.PublishDocumentsChanged(ctx, payload)
	f.observer.ObservePublish(err)
	if err != nil {
		f.logger.Warn("publish documents changed", "error", err)
	}
}

// Stop unsubscribes and waits for the publishing goroutine to exit.
func (f *ChangeFeed) Stop() {
	f.once.Do(func() {
		if f.stop == nil {
			close(f.done)
			return
		}
		f.stop()
		<-f.done
	})
}

// Snapshot captures the compact list state published on every change.
func Snapshot(store ports.DocumentReader) ChangeSnapshot {
	rev := store.Revision()
	docs := store.List()
	out := ChangeSnapshot{Revision: rev, Documents: make([]DocumentState, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, DocumentState{
			ID:        doc.ID,
			Status:    doc.Status,
			Progress:  doc.Progress,
			RiskLevel: doc.RiskLevel,
		})
	}
	return out
}
