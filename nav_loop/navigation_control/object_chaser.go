package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"waypoint-nav/utils"
)

// TargetSample is a tracked object's bearing and range from the camera.
type TargetSample struct {
	Bearing float64 `json:"bearing"`
	Range   float64 `json:"range"`
}

// ObjectChaser keeps a detected object centered at a fixed distance. It
// measures dt from the wall clock between samples, unlike GoalSeeker.
type ObjectChaser struct {
	mu sync.Mutex

	cfg     ChaseConfig
	pub     VelocityPublisher
	log     *utils.Logger
	angular *PIDController
	linear  *PIDController

	lost    bool
	stopped bool
}

// NewObjectChaser starts both loops' clocks at start.
func NewObjectChaser(cfg ChaseConfig, start time.Time, pub VelocityPublisher, log *utils.Logger) (*ObjectChaser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, errors.New("object chaser needs a publisher")
	}

	angCfg := cfg.Angular.Config(cfg.Limits.MaxAngularVel)
	angCfg.MinDt = cfg.MinDt
	linCfg := cfg.Linear.Config(cfg.Limits.MaxLinearVel)
	linCfg.MinDt = cfg.MinDt

	c := &ObjectChaser{
		cfg:     cfg,
		pub:     pub,
		log:     log,
		angular: NewPIDController(angCfg),
		linear:  NewPIDController(linCfg),
	}
	c.angular.MarkTime(start)
	c.linear.MarkTime(start)
	return c, nil
}

// Control computes the command for one sample received at now.
func (c *ObjectChaser) Control(now time.Time, t TargetSample) VelocityCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control(now, t)
}

func (c *ObjectChaser) control(now time.Time, t TargetSample) VelocityCommand {
	if math.IsNaN(t.Range) || t.Range > c.cfg.LostRange {
		if !c.lost {
			c.log.Info("target lost (range=%.2f > %.2f), holding still", t.Range, c.cfg.LostRange)
		}
		c.lost = true
		c.angular.MarkTime(now)
		c.linear.MarkTime(now)
		return ZeroCommand()
	}
	if c.lost {
		c.log.Info("target reacquired at bearing=%.2f range=%.2f", t.Bearing, t.Range)
		c.lost = false
	}

	angleErr := (t.Bearing - c.cfg.AngleSetpoint) / c.cfg.MaxAngleError
	distErr := (t.Range - c.cfg.DistanceSetpoint) / c.cfg.MaxDistanceError

	return VelocityCommand{
		AngularZ: c.angular.CalculateAt(now, 0, angleErr),
		LinearX:  c.linear.CalculateAt(now, distErr, 0),
	}
}

// OnTarget computes and publishes the command for one sample.
func (c *ObjectChaser) OnTarget(ctx context.Context, now time.Time, t TargetSample) (VelocityCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ZeroCommand(), ErrStopped
	}

	cmd := c.control(now, t)
	if err := c.pub.PublishVelocity(ctx, cmd); err != nil {
		return cmd, errors.Wrap(err, "publish velocity")
	}
	c.log.Trace("bearing=%.2f range=%.2f lin=%.3f ang=%.3f", t.Bearing, t.Range, cmd.LinearX, cmd.AngularZ)
	return cmd, nil
}

// Lost reports whether the last sample was beyond the lost range.
func (c *ObjectChaser) Lost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Shutdown publishes the zero command once and refuses further samples.
func (c *ObjectChaser) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}
	c.stopped = true

	c.log.Info("shutdown: publishing stop command")
	if err := c.pub.PublishVelocity(ctx, ZeroCommand()); err != nil {
		return errors.Wrap(err, "publish stop command")
	}
	return nil
}
