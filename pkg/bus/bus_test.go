package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("ping", func(payload any) { got = append(got, "first") })
	b.Subscribe("ping", func(payload any) { got = append(got, "second") })
	b.Subscribe("other", func(payload any) { got = append(got, "other") })

	b.Publish("ping", nil)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestPublishPassesPayload(t *testing.T) {
	b := New()

	var got any
	b.Subscribe("ping", func(payload any) { got = payload })
	b.Publish("ping", 42)

	assert.Equal(t, 42, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	calls := 0
	unsub := b.Subscribe("ping", func(payload any) { calls++ })

	b.Publish("ping", nil)
	unsub()
	b.Publish("ping", nil)
	unsub() // second call is a no-op

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeDoesNotAffectSiblings(t *testing.T) {
	b := New()

	var got []string
	unsubA := b.Subscribe("ping", func(payload any) { got = append(got, "a") })
	b.Subscribe("ping", func(payload any) { got = append(got, "b") })
	unsubA()

	b.Publish("ping", nil)

	assert.Equal(t, []string{"b"}, got)
}

func TestRequireGatesDelivery(t *testing.T) {
	b := New()
	b.Require("guarded", "navigation")

	calls := 0
	b.Subscribe("guarded", func(payload any) { calls++ })

	b.Publish("guarded", nil)
	assert.Zero(t, calls, "event should be dropped while the module is unregistered")

	b.RegisterModule("navigation")
	b.Publish("guarded", nil)
	assert.Equal(t, 1, calls)

	b.UnregisterModule("navigation")
	b.Publish("guarded", nil)
	assert.Equal(t, 1, calls, "event should be dropped again after teardown")
}

func TestDroppedEventsAreNotQueued(t *testing.T) {
	b := New()
	b.Require("guarded", "navigation")

	calls := 0
	b.Subscribe("guarded", func(payload any) { calls++ })

	b.Publish("guarded", nil)
	b.RegisterModule("navigation")

	assert.Zero(t, calls, "registration must not replay dropped events")
}

func TestModuleReady(t *testing.T) {
	b := New()
	require.False(t, b.ModuleReady("navigation"))
	b.RegisterModule("navigation")
	require.True(t, b.ModuleReady("navigation"))
}

func TestPanickingListenerDoesNotStopDelivery(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("ping", func(payload any) { panic("boom") })
	b.Subscribe("ping", func(payload any) { got = append(got, "survivor") })

	require.NotPanics(t, func() { b.Publish("ping", nil) })
	assert.Equal(t, []string{"survivor"}, got)
}

func TestListenerMayPublishFurtherEvents(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("first", func(payload any) {
		got = append(got, "first")
		b.Publish("second", nil)
	})
	b.Subscribe("second", func(payload any) { got = append(got, "second") })

	b.Publish("first", nil)

	assert.Equal(t, []string{"first", "second"}, got)
}
