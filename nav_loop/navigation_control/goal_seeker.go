package control

import (
	"waypoint-nav/utils"
)

// GoalSeeker drives toward the front of an ordered waypoint queue and pops
// each waypoint once the robot is within the arrival threshold.
type GoalSeeker struct {
	cfg       GoalSeekerConfig
	log       *utils.Logger
	waypoints []Waypoint

	angular *PIDController
	linear  *PIDController

	reached  int
	complete bool

	// OnArrival, if set, is called with each waypoint as it is popped.
	OnArrival func(w Waypoint, remaining int)
	// OnRouteComplete, if set, is called once when the queue runs empty.
	OnRouteComplete func()
}

func NewGoalSeeker(cfg GoalSeekerConfig, waypoints []Waypoint, log *utils.Logger) (*GoalSeeker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GoalSeeker{
		cfg:       cfg,
		log:       log,
		waypoints: append([]Waypoint(nil), waypoints...),
		angular:   NewPIDController(cfg.Angular.Config(cfg.Limits.MaxAngularVel)),
		linear:    NewPIDController(cfg.Linear.Config(cfg.Limits.MaxLinearVel)),
	}, nil
}

// Control runs one tick. The proximity signal is unused.
//
// On the tick a waypoint is reached it is popped and, unless
// AdvanceOnArrival is set, the zero command is returned; the next waypoint
// becomes the target on the following tick. An empty queue always yields
// the zero command.
func (g *GoalSeeker) Control(pose Pose2D, _ float64) VelocityCommand {
	if len(g.waypoints) == 0 {
		g.finish()
		return ZeroCommand()
	}

	wpRF := ToRobotFrame(g.waypoints[0], pose)
	if wpRF.Distance() < g.cfg.WaypointThreshold {
		g.pop()
		if len(g.waypoints) == 0 {
			g.finish()
			return ZeroCommand()
		}
		if !g.cfg.AdvanceOnArrival {
			return ZeroCommand()
		}
		wpRF = ToRobotFrame(g.waypoints[0], pose)
	}

	cmd := VelocityCommand{
		AngularZ: g.angular.Calculate(g.cfg.ControlDt, wpRF.Heading(), 0),
		LinearX:  g.linear.Calculate(g.cfg.ControlDt, wpRF.X, 0),
	}
	g.log.Trace("waypoint_rf=%s heading=%.3f dist=%.4f ang=%.3f lin=%.3f",
		wpRF, wpRF.Heading(), wpRF.Distance(), cmd.AngularZ, cmd.LinearX)
	return cmd
}

func (g *GoalSeeker) pop() {
	w := g.waypoints[0]
	g.waypoints = g.waypoints[1:]
	g.reached++
	g.log.Info("waypoint %d reached at %s, %d remaining", g.reached, w, len(g.waypoints))
	if g.OnArrival != nil {
		g.OnArrival(w, len(g.waypoints))
	}
}

func (g *GoalSeeker) finish() {
	if g.complete {
		return
	}
	g.complete = true
	g.log.Info("route complete after %d waypoints", g.reached)
	if g.OnRouteComplete != nil {
		g.OnRouteComplete()
	}
}

// CurrentWaypointRF returns the active target in the frame of pose.
func (g *GoalSeeker) CurrentWaypointRF(pose Pose2D) (Waypoint, bool) {
	if len(g.waypoints) == 0 {
		return Waypoint{}, false
	}
	return ToRobotFrame(g.waypoints[0], pose), true
}

// Current returns the active world-frame target.
func (g *GoalSeeker) Current() (Waypoint, bool) {
	if len(g.waypoints) == 0 {
		return Waypoint{}, false
	}
	return g.waypoints[0], true
}

func (g *GoalSeeker) Remaining() int {
	return len(g.waypoints)
}

func (g *GoalSeeker) Reached() int {
	return g.reached
}

// Done reports whether every waypoint has been reached.
func (g *GoalSeeker) Done() bool {
	return len(g.waypoints) == 0
}

// Diagnostics returns the angular and linear controller state.
func (g *GoalSeeker) Diagnostics() (angular, linear PIDDiagnostics) {
	return g.angular.GetDiagnostics(), g.linear.GetDiagnostics()
}
