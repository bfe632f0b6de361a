package control

import "github.com/pkg/errors"

// Turtlebot3 Burger limits.
const (
	BurgerMaxAngularVel = 2.84 // rad/s
	BurgerMaxLinearVel  = 0.2  // m/s, below the 0.22 hardware limit
)

// DefaultMinDt is the floor applied to control intervals.
const DefaultMinDt = 1e-3

// PIDGains holds the tunable part of one axis.
type PIDGains struct {
	Kp            float64 `json:"kp" yaml:"kp"`
	Ki            float64 `json:"ki" yaml:"ki"`
	Kd            float64 `json:"kd" yaml:"kd"`
	IntegralLimit float64 `json:"integral_limit,omitempty" yaml:"integral_limit,omitempty"`
}

// Config builds a symmetric PID configuration saturating at ±limit.
func (g PIDGains) Config(limit float64) PIDConfig {
	return PIDConfig{
		Kp:            g.Kp,
		Ki:            g.Ki,
		Kd:            g.Kd,
		OutputMax:     limit,
		OutputMin:     -limit,
		IntegralLimit: g.IntegralLimit,
	}
}

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	Kp        float64 `json:"kp" yaml:"kp"`
	Ki        float64 `json:"ki" yaml:"ki"`
	Kd        float64 `json:"kd" yaml:"kd"`
	OutputMax float64 `json:"output_max" yaml:"output_max"`
	OutputMin float64 `json:"output_min" yaml:"output_min"`

	// IntegralLimit clamps the accumulated integral to ±IntegralLimit.
	// Zero leaves the integral unbounded; only the output is clamped then.
	IntegralLimit float64 `json:"integral_limit" yaml:"integral_limit"`

	// MinDt floors dt. Zero means DefaultMinDt.
	MinDt float64 `json:"min_dt" yaml:"min_dt"`
}

func (c PIDConfig) Validate() error {
	if c.OutputMin > c.OutputMax {
		return errors.Errorf("output_min %.3f exceeds output_max %.3f", c.OutputMin, c.OutputMax)
	}
	if c.IntegralLimit < 0 {
		return errors.Errorf("integral_limit must be >= 0, got %.3f", c.IntegralLimit)
	}
	if c.MinDt < 0 {
		return errors.Errorf("min_dt must be >= 0, got %.3f", c.MinDt)
	}
	return nil
}

// RobotLimits bounds the commands sent to the base.
type RobotLimits struct {
	MaxLinearVel  float64 `json:"max_linear_vel" yaml:"max_linear_vel"`
	MaxAngularVel float64 `json:"max_angular_vel" yaml:"max_angular_vel"`
}

func (l RobotLimits) Validate() error {
	if l.MaxLinearVel <= 0 || l.MaxAngularVel <= 0 {
		return errors.Errorf("robot limits must be positive (linear=%.3f angular=%.3f)", l.MaxLinearVel, l.MaxAngularVel)
	}
	return nil
}

// GoalSeekerConfig configures waypoint following.
type GoalSeekerConfig struct {
	WaypointThreshold float64     `json:"waypoint_threshold" yaml:"waypoint_threshold"` // m
	ControlDt         float64     `json:"control_dt" yaml:"control_dt"`                 // s, fixed
	AdvanceOnArrival  bool        `json:"advance_on_arrival" yaml:"advance_on_arrival"`
	Limits            RobotLimits `json:"limits" yaml:"limits"`
	Angular           PIDGains    `json:"angular_pid" yaml:"angular_pid"`
	Linear            PIDGains    `json:"linear_pid" yaml:"linear_pid"`
}

// DefaultGoalSeekerConfig returns the gains tuned on the Burger.
func DefaultGoalSeekerConfig() GoalSeekerConfig {
	return GoalSeekerConfig{
		WaypointThreshold: 0.01,
		ControlDt:         0.01,
		Limits: RobotLimits{
			MaxLinearVel:  BurgerMaxLinearVel,
			MaxAngularVel: BurgerMaxAngularVel,
		},
		Angular: PIDGains{Kp: 1.7},
		Linear:  PIDGains{Kp: 0.8, Kd: 0.1},
	}
}

func (c GoalSeekerConfig) Validate() error {
	if c.WaypointThreshold <= 0 {
		return errors.Errorf("waypoint_threshold must be positive, got %.4f", c.WaypointThreshold)
	}
	if c.ControlDt <= 0 {
		return errors.Errorf("control_dt must be positive, got %.4f", c.ControlDt)
	}
	return c.Limits.Validate()
}

// SupervisorConfig configures behavior selection.
type SupervisorConfig struct {
	ObstacleThreshold float64 `json:"obstacle_threshold" yaml:"obstacle_threshold"` // m
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{ObstacleThreshold: 0.2}
}

// ChaseConfig configures the object-chase loop.
type ChaseConfig struct {
	LostRange        float64     `json:"lost_range" yaml:"lost_range"`
	DistanceSetpoint float64     `json:"distance_setpoint" yaml:"distance_setpoint"`
	MaxDistanceError float64     `json:"max_distance_error" yaml:"max_distance_error"`
	AngleSetpoint    float64     `json:"angle_setpoint" yaml:"angle_setpoint"`
	MaxAngleError    float64     `json:"max_angle_error" yaml:"max_angle_error"`
	MinDt            float64     `json:"min_dt" yaml:"min_dt"`
	Limits           RobotLimits `json:"limits" yaml:"limits"`
	Angular          PIDGains    `json:"angular_pid" yaml:"angular_pid"`
	Linear           PIDGains    `json:"linear_pid" yaml:"linear_pid"`
}

// DefaultChaseConfig returns the constants the chase node was tuned with.
// Bearing and range are in camera units, not radians and meters.
func DefaultChaseConfig() ChaseConfig {
	return ChaseConfig{
		LostRange:        100,
		DistanceSetpoint: 5,
		MaxDistanceError: 100,
		AngleSetpoint:    0,
		MaxAngleError:    31,
		MinDt:            DefaultMinDt,
		Limits: RobotLimits{
			MaxLinearVel:  4,
			MaxAngularVel: BurgerMaxAngularVel,
		},
		Angular: PIDGains{Kp: 1.875, Kd: 0.125},
		Linear:  PIDGains{Kp: 1.875, Kd: 0.125},
	}
}

func (c ChaseConfig) Validate() error {
	if c.MaxDistanceError <= 0 || c.MaxAngleError <= 0 {
		return errors.Errorf("max_distance_error and max_angle_error must be positive (%.3f, %.3f)",
			c.MaxDistanceError, c.MaxAngleError)
	}
	if c.LostRange <= 0 {
		return errors.Errorf("lost_range must be positive, got %.3f", c.LostRange)
	}
	return c.Limits.Validate()
}
