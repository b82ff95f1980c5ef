package events

import "context"

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) PublishDocumentsChanged(context.Context, []byte) error { return nil }
