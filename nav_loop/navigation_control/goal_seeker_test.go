package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unicycle integrates a velocity command over dt.
func unicycle(p Pose2D, cmd VelocityCommand, dt float64) Pose2D {
	return Pose2D{
		X:     p.X + cmd.LinearX*math.Cos(p.Theta)*dt,
		Y:     p.Y + cmd.LinearX*math.Sin(p.Theta)*dt,
		Theta: NormalizeAngle(p.Theta + cmd.AngularZ*dt),
	}
}

func newTestSeeker(t *testing.T, cfg GoalSeekerConfig, route ...Waypoint) *GoalSeeker {
	t.Helper()
	g, err := NewGoalSeeker(cfg, route, nopLogger())
	require.NoError(t, err)
	return g
}

func TestGoalSeekerConvergesOnSingleWaypoint(t *testing.T) {
	cfg := DefaultGoalSeekerConfig()
	g := newTestSeeker(t, cfg, Waypoint{X: 0.15})

	var pose Pose2D
	ticks := 0
	for !g.Done() {
		require.Less(t, ticks, 1000, "waypoint not reached, pose=%+v", pose)
		cmd := g.Control(pose, math.Inf(1))
		assert.LessOrEqual(t, math.Abs(cmd.LinearX), cfg.Limits.MaxLinearVel)
		assert.LessOrEqual(t, math.Abs(cmd.AngularZ), cfg.Limits.MaxAngularVel)
		pose = unicycle(pose, cmd, cfg.ControlDt)
		ticks++
	}

	assert.InDelta(t, 0.15, pose.X, cfg.WaypointThreshold)
	assert.Equal(t, 1, g.Reached())
	assert.True(t, g.Control(pose, 0).IsZero())
}

func TestGoalSeekerFollowsRoute(t *testing.T) {
	cfg := DefaultGoalSeekerConfig()
	route := []Waypoint{{X: 0.15}, {X: 0.15, Y: 0.15}}
	g := newTestSeeker(t, cfg, route...)

	var arrivals []Waypoint
	g.OnArrival = func(w Waypoint, _ int) { arrivals = append(arrivals, w) }

	var pose Pose2D
	for ticks := 0; !g.Done(); ticks++ {
		require.Less(t, ticks, 3000, "route not finished, pose=%+v", pose)
		pose = unicycle(pose, g.Control(pose, math.Inf(1)), cfg.ControlDt)
	}

	assert.Equal(t, route, arrivals)
	assert.InDelta(t, 0.15, pose.Y, cfg.WaypointThreshold)
}

func TestGoalSeekerFirstTickCommand(t *testing.T) {
	cfg := DefaultGoalSeekerConfig()

	ahead := newTestSeeker(t, cfg, Waypoint{X: 1})
	cmd := ahead.Control(Pose2D{}, 0)
	assert.InDelta(t, 0, cmd.AngularZ, 1e-12)
	assert.Equal(t, cfg.Limits.MaxLinearVel, cmd.LinearX)

	left := newTestSeeker(t, cfg, Waypoint{Y: 1})
	cmd = left.Control(Pose2D{}, 0)
	assert.InDelta(t, 1.7*math.Pi/2, cmd.AngularZ, 1e-9)
	assert.InDelta(t, 0, cmd.LinearX, 1e-9)
}

func TestGoalSeekerArrivalPopsThenSkips(t *testing.T) {
	g := newTestSeeker(t, DefaultGoalSeekerConfig(), Waypoint{}, Waypoint{X: 1})

	cmd := g.Control(Pose2D{X: 0.001}, 0)
	assert.True(t, cmd.IsZero())
	assert.Equal(t, 1, g.Remaining())

	current, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, Waypoint{X: 1}, current)

	assert.False(t, g.Control(Pose2D{X: 0.001}, 0).IsZero())
}

func TestGoalSeekerAdvanceOnArrival(t *testing.T) {
	cfg := DefaultGoalSeekerConfig()
	cfg.AdvanceOnArrival = true
	g := newTestSeeker(t, cfg, Waypoint{}, Waypoint{X: 1})

	cmd := g.Control(Pose2D{}, 0)
	assert.Equal(t, cfg.Limits.MaxLinearVel, cmd.LinearX)
	assert.Equal(t, 1, g.Remaining())
	assert.Equal(t, 1, g.Reached())
}

func TestGoalSeekerEmptyQueue(t *testing.T) {
	g := newTestSeeker(t, DefaultGoalSeekerConfig())

	completions := 0
	g.OnRouteComplete = func() { completions++ }

	for i := 0; i < 3; i++ {
		assert.True(t, g.Control(Pose2D{X: 5, Theta: 1}, 0).IsZero())
	}
	assert.Equal(t, 1, completions)
	assert.True(t, g.Done())

	_, ok := g.CurrentWaypointRF(Pose2D{})
	assert.False(t, ok)
}

func TestGoalSeekerCopiesRoute(t *testing.T) {
	route := []Waypoint{{X: 1}}
	g := newTestSeeker(t, DefaultGoalSeekerConfig(), route...)
	route[0].X = 9

	current, _ := g.Current()
	assert.Equal(t, 1.0, current.X)
}

func TestGoalSeekerConfigValidation(t *testing.T) {
	cfg := DefaultGoalSeekerConfig()
	cfg.WaypointThreshold = 0
	_, err := NewGoalSeeker(cfg, nil, nopLogger())
	assert.Error(t, err)

	cfg = DefaultGoalSeekerConfig()
	cfg.Limits.MaxLinearVel = 0
	_, err = NewGoalSeeker(cfg, nil, nopLogger())
	assert.Error(t, err)
}
