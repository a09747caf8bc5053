package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSConfigValidate(t *testing.T) {
	cfg := &NATSConfig{}
	assert.ErrorIs(t, cfg.Validate(), ErrNATSURLRequired)

	cfg = &NATSConfig{URL: "nats://localhost:4222"}
	assert.NoError(t, cfg.Validate())
}

func TestSystemClockNow(t *testing.T) {
	clock := SystemClock()

	before := time.Now()
	now := clock.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestSystemClockAfterFunc(t *testing.T) {
	clock := SystemClock()

	fired := make(chan struct{})

	timer := clock.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	assert.False(t, timer.Stop(), "stopping a fired timer reports false")
}

func TestSystemClockTimerStop(t *testing.T) {
	clock := SystemClock()

	timer := clock.AfterFunc(time.Hour, func() {
		t.Error("stopped timer must not fire")
	})

	require.True(t, timer.Stop())
}
