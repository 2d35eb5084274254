package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishRoutesByType(t *testing.T) {
	bus := NewEventBus()

	var got, all []string
	bus.Subscribe("appointment.add", func(e Event) error {
		got = append(got, e.Type)
		return nil
	})
	bus.Subscribe(TypeAll, func(e Event) error {
		all = append(all, e.Type)
		return nil
	})

	bus.Publish(Event{Type: "appointment.add"})
	bus.Publish(Event{Type: "client.add"})

	assert.Equal(t, []string{"appointment.add"}, got)
	assert.Equal(t, []string{"appointment.add", "client.add"}, all)
}

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	type payload struct {
		ID string `json:"id"`
	}

	var received Event
	bus.Subscribe("x", func(e Event) error {
		received = e
		return nil
	})

	require.NoError(t, bus.PublishJSON("x", payload{ID: "a1"}))
	assert.NotEmpty(t, received.ID)
	assert.False(t, received.CreatedAt.IsZero())
	assert.Equal(t, payload{ID: "a1"}, received.Data)

	var decoded payload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "a1", decoded.ID)
}

func TestEventBus_HandlerErrorsReported(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")

	var reported error
	bus.OnError(func(_ Event, err error) { reported = err })

	called := false
	bus.Subscribe("x", func(Event) error { return boom })
	bus.Subscribe("x", func(Event) error {
		called = true
		return nil
	})

	bus.Publish(Event{Type: "x"})
	assert.ErrorIs(t, reported, boom)
	assert.True(t, called, "later handlers still run")
}
