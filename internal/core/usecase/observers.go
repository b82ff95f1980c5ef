package usecase

import (
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

type noopObserver struct{}

func (noopObserver) ObserveAnswer(domain.AnswerKind)             {}
func (noopObserver) ObserveDiscardedSpans(int)                   {}
func (noopObserver) ObserveIngestStarted()                       {}
func (noopObserver) ObserveIngestFinished(string, time.Duration) {}
func (noopObserver) ObservePublish(error)                        {}

const (
	IngestOutcomeCompleted = "completed"
	IngestOutcomeFailed    = "failed"
	IngestOutcomeCancelled = "cancelled"
)
