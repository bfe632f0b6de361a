package control

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"waypoint-nav/utils"
)

// State is the navigation mode chosen for one control tick.
type State int

const (
	StateSeekGoal State = iota
	StateAvoidObstacle
)

func (s State) String() string {
	switch s {
	case StateSeekGoal:
		return "SeekGoal"
	case StateAvoidObstacle:
		return "AvoidObstacle"
	default:
		return "Unknown"
	}
}

// SelectState picks AvoidObstacle when the nearest obstacle is closer than
// threshold. There is no hysteresis.
func SelectState(proximity, threshold float64) State {
	if proximity < threshold {
		return StateAvoidObstacle
	}
	return StateSeekGoal
}

// ErrStopped is returned by Step after Shutdown.
var ErrStopped = errors.New("navigation supervisor stopped")

// Supervisor selects the active behavior on every sensor event and
// publishes its command. Publishing happens under the supervisor lock so
// the command order matches the tick order.
type Supervisor struct {
	mu sync.Mutex

	cfg   SupervisorConfig
	pose  PoseSource
	seek  Behavior
	avoid Behavior
	pub   VelocityPublisher
	log   *utils.Logger

	state   State
	last    VelocityCommand
	ticks   uint64
	stopped bool
}

func NewSupervisor(cfg SupervisorConfig, pose PoseSource, seek, avoid Behavior, pub VelocityPublisher, log *utils.Logger) (*Supervisor, error) {
	if cfg.ObstacleThreshold < 0 {
		return nil, errors.Errorf("obstacle_threshold must be >= 0, got %.3f", cfg.ObstacleThreshold)
	}
	if pose == nil || seek == nil || avoid == nil || pub == nil {
		return nil, errors.New("supervisor needs a pose source, both behaviors and a publisher")
	}
	return &Supervisor{
		cfg:   cfg,
		pose:  pose,
		seek:  seek,
		avoid: avoid,
		pub:   pub,
		log:   log,
	}, nil
}

// OnScan handles a range scan: it derives the proximity signal and runs a tick.
func (s *Supervisor) OnScan(ctx context.Context, scan ScanSample) (VelocityCommand, error) {
	return s.Step(ctx, MinRange(scan))
}

// Step runs one control tick for the given proximity signal. The behavior
// runs before the publish, so a failed publish still leaves its state
// advanced (PID memory, popped waypoints) and LastCommand unchanged.
func (s *Supervisor) Step(ctx context.Context, proximity float64) (VelocityCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ZeroCommand(), ErrStopped
	}

	state := SelectState(proximity, s.cfg.ObstacleThreshold)
	if s.ticks > 0 && state != s.state {
		s.log.Info("state %s -> %s (proximity=%.3f threshold=%.3f)",
			s.state, state, proximity, s.cfg.ObstacleThreshold)
	}

	behavior := s.seek
	if state == StateAvoidObstacle {
		behavior = s.avoid
	}

	pose := s.pose.Pose()
	cmd := behavior.Control(pose, proximity)

	s.state = state
	s.ticks++

	if err := s.pub.PublishVelocity(ctx, cmd); err != nil {
		return cmd, errors.Wrap(err, "publish velocity")
	}
	s.last = cmd

	s.log.Trace("tick=%d state=%s pose=(%.3f, %.3f, %.3f) lin=%.3f ang=%.3f",
		s.ticks, state, pose.X, pose.Y, pose.Theta, cmd.LinearX, cmd.AngularZ)
	return cmd, nil
}

// Shutdown publishes the zero command once and refuses further ticks, so
// the zero command is the last one this supervisor ever publishes.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.last = ZeroCommand()

	s.log.Info("shutdown: publishing stop command")
	if err := s.pub.PublishVelocity(ctx, ZeroCommand()); err != nil {
		return errors.Wrap(err, "publish stop command")
	}
	return nil
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastCommand returns the last command successfully published.
func (s *Supervisor) LastCommand() VelocityCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Supervisor) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Supervisor) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
