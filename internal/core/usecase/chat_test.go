package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

type fakeReader struct {
	docs map[string]domain.Document
}

func (f *fakeReader) Get(id string) (domain.Document, bool) {
	doc, ok := f.docs[id]
	return doc, ok
}

func (f *fakeReader) List() []domain.Document {
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	return out
}

func (f *fakeReader) Revision() uint64 { return 1 }

type recordingAnswerObserver struct {
	kinds []domain.AnswerKind
}

func (r *recordingAnswerObserver) ObserveAnswer(kind domain.AnswerKind) {
	r.kinds = append(r.kinds, kind)
}

func TestChatAskResolvesDocuments(t *testing.T) {
	doc := analyzedDocument()
	observer := &recordingAnswerObserver{}
	uc := NewChatUseCase(&fakeReader{docs: map[string]domain.Document{doc.ID: doc}}, nil, observer)

	if got := uc.Ask(context.Background(), "", "summary").Kind; got != domain.AnswerNoDocumentSelected {
		t.Fatalf("expected no_document_selected, got %s", got)
	}
	if got := uc.Ask(context.Background(), "   ", "summary").Kind; got != domain.AnswerNoDocumentSelected {
		t.Fatalf("expected blank id to count as no selection, got %s", got)
	}

	missing := uc.Ask(context.Background(), "ghost", "summary")
	if missing.Kind != domain.AnswerDocumentNotFound {
		t.Fatalf("expected document_not_found, got %s", missing.Kind)
	}
	if missing.DocumentID != "ghost" || missing.Text == "" {
		t.Fatalf("unexpected not-found answer: %+v", missing)
	}

	if got := uc.Ask(context.Background(), doc.ID, "summary").Kind; got != domain.AnswerSummary {
		t.Fatalf("expected summary, got %s", got)
	}

	if len(observer.kinds) != 4 {
		t.Fatalf("expected 4 observed answers, got %d", len(observer.kinds))
	}
}

func TestSuggestedQuestionsAreCopies(t *testing.T) {
	uc := NewChatUseCase(&fakeReader{}, nil, nil)
	first := uc.SuggestedQuestions()
	if len(first) != 6 {
		t.Fatalf("expected 6 suggested questions, got %d", len(first))
	}
	first[0] = "mutated"
	if uc.SuggestedQuestions()[0] == "mutated" {
		t.Fatalf("suggested questions must not be shared")
	}
}
