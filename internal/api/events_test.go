package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/models"
)

var (
	_ checklist.Notifier = (*Hub)(nil)
	_ checklist.Observer = (*Hub)(nil)
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub(nil)
	a := h.subscribe()
	b := h.subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.OnTransition(checklist.Transition{ItemID: "database-1", From: models.ItemPending, To: models.ItemRunning})

	for _, sub := range []*subscriber{a, b} {
		var ev struct {
			Type string               `json:"type"`
			Data checklist.Transition `json:"data"`
		}
		require.NoError(t, json.Unmarshal(<-sub.send, &ev))
		assert.Equal(t, EventTransition, ev.Type)
		assert.Equal(t, "database-1", ev.Data.ItemID)
		assert.Equal(t, models.ItemRunning, ev.Data.To)
	}

	h.unsubscribe(a)
	h.Notify(context.Background(), checklist.Notification{Level: checklist.LevelSuccess, Title: "Test passed"})

	_, open := <-a.send
	assert.False(t, open)
	assert.Contains(t, string(<-b.send), "Test passed")
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(nil)
	sub := h.subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Notify(context.Background(), checklist.Notification{Title: "x"})
	}
	assert.Len(t, sub.send, subscriberBuffer)
}

func TestHubClose(t *testing.T) {
	h := NewHub(nil)
	sub := h.subscribe()
	h.Close()

	_, open := <-sub.send
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())

	late := h.subscribe()
	_, open = <-late.send
	assert.False(t, open)

	// unsubscribing after close is a no-op
	h.unsubscribe(sub)
}
