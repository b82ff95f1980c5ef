package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

type listener struct {
	id      uint64
	fn      func()
	removed atomic.Bool
}

// DocumentStore keeps documents in insertion order and notifies subscribers
// synchronously after every successful mutation.
type DocumentStore struct {
	logger *slog.Logger
	now    func() time.Time

	// writeMu serializes mutate+notify so callbacks observe mutations in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	docs      map[string]domain.Document
	order     []string
	revision  uint64
	listeners []*listener
	nextID    uint64
}

func NewDocumentStore(logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		docs:   make(map[string]domain.Document),
	}
}

func (s *DocumentStore) Add(doc domain.Document) error {
	if doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "add document", errors.New("document id is empty"))
	}
	if doc.Status == "" {
		doc.Status = domain.StatusUploading
	}
	if !doc.Status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "add document", fmt.Errorf("unknown status %q", doc.Status))
	}
	if err := validateProgress(doc.Progress); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "add document", err)
	}
	if err := domain.ValidateClauses(doc.Content, doc.RiskClauses); err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if _, exists := s.docs[doc.ID]; exists {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrDuplicateID, "add document", fmt.Errorf("id %s", doc.ID))
	}
	now := s.now()
	stored := doc.Clone()
	stored.RiskLevel = domain.AggregateRiskLevel(stored.RiskClauses)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UploadDate == "" {
		stored.UploadDate = stored.CreatedAt.Format(domain.UploadDateLayout)
	}
	stored.UpdatedAt = now
	s.docs[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	s.revision++
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *DocumentStore) Update(id string, patch domain.DocumentPatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	current, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id %s", id))
	}
	next, err := applyPatch(current, patch)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("update document %s: %w", id, err)
	}
	next.UpdatedAt = s.now()
	s.docs[id] = next
	s.revision++
	s.mu.Unlock()

	s.notify()
	return nil
}

func applyPatch(current domain.Document, patch domain.DocumentPatch) (domain.Document, error) {
	if current.Status.Terminal() && (patch.Status != nil || patch.Progress != nil || patch.Error != nil || patch.TouchesAnalysis()) {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidTransition, "apply patch",
			fmt.Errorf("document is %s", current.Status))
	}

	next := current.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Status != nil && *patch.Status != current.Status {
		if !current.Status.CanTransition(*patch.Status) {
			return domain.Document{}, domain.WrapError(domain.ErrInvalidTransition, "apply patch",
				fmt.Errorf("%s -> %s", current.Status, *patch.Status))
		}
		next.Status = *patch.Status
	}
	if patch.Progress != nil {
		if err := validateProgress(*patch.Progress); err != nil {
			return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "apply patch", err)
		}
		next.Progress = *patch.Progress
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if patch.Summary != nil {
		next.Summary = patch.Summary.Clone()
	}
	if patch.RiskClauses != nil {
		next.RiskClauses = append([]domain.RiskClause{}, (*patch.RiskClauses)...)
	}
	if patch.Error != nil {
		next.Error = *patch.Error
	}
	if next.Status == domain.StatusCompleted {
		next.Progress = 100
	}

	if patch.Content != nil || patch.RiskClauses != nil {
		if err := domain.ValidateClauses(next.Content, next.RiskClauses); err != nil {
			return domain.Document{}, err
		}
	}
	next.RiskLevel = domain.AggregateRiskLevel(next.RiskClauses)
	return next, nil
}

func validateProgress(p float64) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("progress %.2f outside 0..100", p)
	}
	return nil
}

func (s *DocumentStore) Get(id string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, false
	}
	return doc.Clone(), true
}

func (s *DocumentStore) List() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id].Clone())
	}
	return out
}

// Revision counts successful mutations. Polling clients use it as an ETag.
func (s *DocumentStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe registers fn. The returned func is idempotent and removes
// exactly this registration, even if fn was registered more than once.
//
// fn runs on the mutating goroutine while the write lock is held. It may read
// the store and unsubscribe, but it must not call Add or Update directly: that
// blocks forever. Hand such writes to another goroutine instead.
func (s *DocumentStore) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	l := &listener{id: s.nextID, fn: fn}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.removed.Store(true)
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, candidate := range s.listeners {
				if candidate == l {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// notify runs with writeMu held and the data lock released, so callbacks may read.
func (s *DocumentStore) notify() {
	s.mu.RLock()
	snapshot := append([]*listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range snapshot {
		if l.removed.Load() {
			continue
		}
		s.invoke(l)
	}
}

func (s *DocumentStore) invoke(l *listener) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store listener panicked", "listener_id", l.id, "panic", fmt.Sprint(r))
		}
	}()
	l.fn()
}
