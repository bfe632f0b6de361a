package control

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chaseStart = time.Unix(1700000000, 0)

func newTestChaser(t *testing.T, pub VelocityPublisher) *ObjectChaser {
	t.Helper()
	c, err := NewObjectChaser(DefaultChaseConfig(), chaseStart, pub, nopLogger())
	require.NoError(t, err)
	return c
}

func TestObjectChaserLostTargetHoldsStill(t *testing.T) {
	c := newTestChaser(t, &recordingPublisher{})

	for _, s := range []TargetSample{
		{Bearing: 0, Range: 150},
		{Bearing: 25, Range: 150},
		{Bearing: 10, Range: math.NaN()},
	} {
		cmd := c.Control(chaseStart.Add(100*time.Millisecond), s)
		assert.Equal(t, ZeroCommand(), cmd)
		assert.True(t, c.Lost())
	}

	c.Control(chaseStart.Add(200*time.Millisecond), TargetSample{Range: 5})
	assert.False(t, c.Lost())
}

func TestObjectChaserOnSetpoint(t *testing.T) {
	c := newTestChaser(t, &recordingPublisher{})
	cmd := c.Control(chaseStart.Add(100*time.Millisecond), TargetSample{Bearing: 0, Range: 5})
	assert.InDelta(t, 0, cmd.LinearX, 1e-12)
	assert.InDelta(t, 0, cmd.AngularZ, 1e-12)
}

func TestObjectChaserGains(t *testing.T) {
	const dt = 0.1
	now := chaseStart.Add(100 * time.Millisecond)

	c := newTestChaser(t, &recordingPublisher{})
	cmd := c.Control(now, TargetSample{Bearing: 0, Range: 55})
	distErr := 0.5
	assert.InDelta(t, 1.875*distErr+0.125*distErr/dt, cmd.LinearX, 1e-9)
	assert.InDelta(t, 0, cmd.AngularZ, 1e-12)

	c = newTestChaser(t, &recordingPublisher{})
	cmd = c.Control(now, TargetSample{Bearing: 15.5, Range: 5})
	angErr := -0.5
	assert.InDelta(t, 1.875*angErr+0.125*angErr/dt, cmd.AngularZ, 1e-9)

	// target on the right turns right, saturated at the angular limit
	c = newTestChaser(t, &recordingPublisher{})
	cmd = c.Control(now, TargetSample{Bearing: 31, Range: 5})
	assert.Equal(t, -BurgerMaxAngularVel, cmd.AngularZ)
}

func TestObjectChaserSameInstantIsFloored(t *testing.T) {
	c := newTestChaser(t, &recordingPublisher{})

	// dt floors to 1ms, the derivative saturates the output
	cmd := c.Control(chaseStart, TargetSample{Bearing: 0, Range: 15})
	assert.Equal(t, 4.0, cmd.LinearX)
	assert.False(t, math.IsInf(cmd.LinearX, 0))
}

func TestObjectChaserShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestChaser(t, pub)
	ctx := context.Background()

	_, err := c.OnTarget(ctx, chaseStart.Add(time.Second), TargetSample{Bearing: 5, Range: 40})
	require.NoError(t, err)

	require.NoError(t, c.Shutdown(ctx))
	require.NoError(t, c.Shutdown(ctx))

	_, err = c.OnTarget(ctx, chaseStart.Add(2*time.Second), TargetSample{Range: 40})
	assert.ErrorIs(t, err, ErrStopped)

	cmds := pub.published()
	require.Len(t, cmds, 2)
	assert.True(t, cmds[1].IsZero())
}

func TestChaseConfigValidation(t *testing.T) {
	cfg := DefaultChaseConfig()
	cfg.MaxAngleError = 0
	_, err := NewObjectChaser(cfg, chaseStart, &recordingPublisher{}, nopLogger())
	assert.Error(t, err)

	_, err = NewObjectChaser(DefaultChaseConfig(), chaseStart, nil, nopLogger())
	assert.Error(t, err)
}
