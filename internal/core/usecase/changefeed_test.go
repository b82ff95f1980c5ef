package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/repository/memory"
)

type capturePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	notify   chan struct{}
}

func (c *capturePublisher) PublishDocumentsChanged(_ context.Context, payload []byte) error {
	c.mu.Lock()
	c.payloads = append(c.payloads, payload)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return c.err
}

func (c *capturePublisher) last(t *testing.T) ChangeSnapshot {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		t.Fatalf("nothing published")
	}
	var snap ChangeSnapshot
	if err := json.Unmarshal(c.payloads[len(c.payloads)-1], &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

type publishCounter struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (p *publishCounter) ObservePublish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		return
	}
	p.ok++
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestChangeFeedPublishesLatestSnapshot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewDocumentStore(logger)
	publisher := &capturePublisher{notify: make(chan struct{}, 1)}
	counter := &publishCounter{}
	feed := NewChangeFeed(store, publisher, counter, logger)
	feed.Start(context.Background())
	defer feed.Stop()

	if err := store.Add(domain.Document{ID: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(domain.Document{ID: "b", Status: domain.StatusProcessing, Progress: 40}); err != nil {
		t.Fatalf("add: %v", err)
	}

	waitFor(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		if len(publisher.payloads) == 0 {
			return false
		}
		var snap ChangeSnapshot
		_ = json.Unmarshal(publisher.payloads[len(publisher.payloads)-1], &snap)
		return snap.Revision == store.Revision()
	})

	snap := publisher.last(t)
	if len(snap.Documents) != 2 || snap.Documents[1].ID != "b" || snap.Documents[1].Progress != 40 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	counter.mu.Lock()
	defer counter.mu.Unlock()
	if counter.ok == 0 || counter.failed != 0 {
		t.Fatalf("unexpected publish counters ok=%d failed=%d", counter.ok, counter.failed)
	}
}

func TestChangeFeedSurvivesPublishErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewDocumentStore(logger)
	publisher := &capturePublisher{notify: make(chan struct{}, 1), err: errors.New("broker down")}
	counter := &publishCounter{}
	feed := NewChangeFeed(store, publisher, counter, logger)
	feed.Start(context.Background())

	if err := store.Add(domain.Document{ID: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	<-publisher.notify
	waitFor(t, func() bool {
		counter.mu.Lock()
		defer counter.mu.Unlock()
		return counter.failed > 0
	})

	feed.Stop()
	feed.Stop()

	// no publish after stop
	publisher.mu.Lock()
	before := len(publisher.payloads)
	publisher.mu.Unlock()
	if err := store.Add(domain.Document{ID: "b"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.payloads) != before {
		t.Fatalf("feed published after stop")
	}
}

func TestSnapshotOfEmptyStore(t *testing.T) {
	store := memory.NewDocumentStore(nil)
	snap := Snapshot(store)
	if snap.Revision != 0 || snap.Documents == nil || len(snap.Documents) != 0 {
		t.Fatalf("unexpected empty snapshot %+v", snap)
	}
}
