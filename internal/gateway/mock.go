package gateway

import (
	"context"

	"github.com/chibi-cli/chibi/internal/model"
)

// Mock is a scripted Client for tests: each StreamChat call pops the next
// scripted turn off Turns (a slice of pre-built event slices).
type Mock struct {
	Turns [][]Event
	Info  model.ModelMetadata
	next  int
}

func (m *Mock) StreamChat(ctx context.Context, req Request) (<-chan Event, error) {
	ch := make(chan Event, 16)
	var events []Event
	if m.next < len(m.Turns) {
		events = m.Turns[m.next]
		m.next++
	}

	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

func (m *Mock) ModelInfo(ctx context.Context, modelName string) (model.ModelMetadata, error) {
	return m.Info, nil
}
