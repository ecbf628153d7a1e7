package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerFSM_HappyCycle(t *testing.T) {
	f := NewWorkerFSM("station-0", nil)
	assert.Equal(t, StateIdle, f.Current())

	require.NoError(t, f.Fire(EventPopped))
	assert.Equal(t, StatePendingPause, f.Current())
	require.NoError(t, f.Fire(EventProceed))
	assert.Equal(t, StateFulfilling, f.Current())
	require.NoError(t, f.Fire(EventDone))
	assert.Equal(t, StateIdle, f.Current())
}

func TestWorkerFSM_RejectsInvalidTransition(t *testing.T) {
	f := NewWorkerFSM("station-0", nil)

	err := f.Fire(EventProceed)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, f.Current())
}

func TestWorkerFSM_ShutdownIsAbsorbing(t *testing.T) {
	for _, path := range [][]Event{
		{},
		{EventPopped},
		{EventPopped, EventProceed},
	} {
		f := NewWorkerFSM("station-1", nil)
		for _, e := range path {
			require.NoError(t, f.Fire(e))
		}
		require.NoError(t, f.Fire(EventShutdown))
		assert.Equal(t, StateShutdown, f.Current())

		for _, e := range []Event{EventPopped, EventProceed, EventDone, EventShutdown} {
			assert.Error(t, f.Fire(e), "event %s must not leave SHUTDOWN", e)
		}
	}
}

func TestWorkerFSM_Callback(t *testing.T) {
	f := NewWorkerFSM("station-2", nil)
	var entered string
	f.RegisterCallback(StateShutdown, func(id string) { entered = id })

	require.NoError(t, f.Fire(EventShutdown))
	assert.Equal(t, "station-2", entered)
}
