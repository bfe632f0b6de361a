package control

import (
	"context"
	"math"
)

// VelocityCommand is a planar twist for a differential-drive base.
type VelocityCommand struct {
	LinearX  float64 `json:"linear_x"`  // m/s
	AngularZ float64 `json:"angular_z"` // rad/s
}

// ZeroCommand stops the robot.
func ZeroCommand() VelocityCommand {
	return VelocityCommand{}
}

// IsZero reports whether the command requests no motion.
func (c VelocityCommand) IsZero() bool {
	return c.LinearX == 0 && c.AngularZ == 0
}

// VelocityPublisher hands commands to the actuation collaborator.
type VelocityPublisher interface {
	PublishVelocity(ctx context.Context, cmd VelocityCommand) error
}

// PublisherFunc adapts a function to VelocityPublisher.
type PublisherFunc func(ctx context.Context, cmd VelocityCommand) error

func (f PublisherFunc) PublishVelocity(ctx context.Context, cmd VelocityCommand) error {
	return f(ctx, cmd)
}

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// NormalizeAngle wraps an angle to (-pi, pi].
func NormalizeAngle(rads float64) float64 {
	if rads > math.Pi || rads <= -math.Pi {
		rads = math.Atan2(math.Sin(rads), math.Cos(rads))
	}
	return rads
}
