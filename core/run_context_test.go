package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContext(t *testing.T) {
	id := NewIdentity("runner")
	rc := NewRunContext(context.Background(), id, 3, nil)

	require.NotEmpty(t, rc.RunID)
	assert.Equal(t, rc.RunID, rc.Session.ID)
	assert.Equal(t, id.String(), rc.Session.AgentID)
	assert.Equal(t, id.String(), rc.AgentID())
	assert.Equal(t, 3, rc.Limiter.Remaining())
	require.NotNil(t, rc.Logger())
}

func TestRunContext_AddEventStampsRunID(t *testing.T) {
	rc := NewRunContext(context.Background(), NewIdentity("r"), 0, nil)
	ev := NewMessageEvent("", "agent", "hi")
	rc.AddEvent(ev)

	events := rc.Session.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, rc.RunID, events[0].RunID)
}

func TestRunContext_Err(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRunContext(ctx, NewIdentity("r"), 0, nil)
	assert.NoError(t, rc.Err())
	cancel()
	assert.ErrorIs(t, rc.Err(), context.Canceled)
}
