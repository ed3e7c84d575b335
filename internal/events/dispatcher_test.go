package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventIssueClaimed, func(_ context.Context, e Event) error {
		seen = append(seen, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventIssueClaimed, func(_ context.Context, e Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventIssueResolved, func(_ context.Context, e Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventIssueClaimed, IssueID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventCommentAdded}))
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher()
	count := 0
	SubscribeAll(d, AllIssueEvents, func(context.Context, Event) error {
		count++
		return nil
	})

	for _, eventType := range AllIssueEvents {
		require.NoError(t, d.Publish(context.Background(), Event{Type: eventType}))
	}
	assert.Equal(t, len(AllIssueEvents), count)
}
