package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
)

type ChatUseCase struct {
	docs     ports.DocumentReader
	engine   *AnswerEngine
	observer ports.AnswerObserver
}

func NewChatUseCase(docs ports.DocumentReader, engine *AnswerEngine, observer ports.AnswerObserver) *ChatUseCase {
	if engine == nil {
		engine = NewAnswerEngine(DefaultAnswerRules())
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &ChatUseCase{docs: docs, engine: engine, observer: observer}
}

// Ask always produces a displayable answer. A missing selection and an id the
// store does not know are answer kinds, not errors.
func (uc *ChatUseCase) Ask(_ context.Context, documentID, question string) domain.Answer {
	answer := uc.ask(strings.TrimSpace(documentID), question)
	uc.observer.ObserveAnswer(answer.Kind)
	return answer
}

func (uc *ChatUseCase) ask(documentID, question string) domain.Answer {
	if documentID == "" {
		return uc.engine.Answer(nil, question)
	}
	doc, ok := uc.docs.Get(documentID)
	if !ok {
		return domain.Answer{
			Kind:       domain.AnswerDocumentNotFound,
			DocumentID: documentID,
			Text:       documentNotFoundText,
		}
	}
	return uc.engine.Answer(&doc, question)
}

func (uc *ChatUseCase) SuggestedQuestions() []string {
	return SuggestedQuestions()
}
