package control

import (
	"math"
	"time"
)

// PIDController implements a discrete single-axis PID regulator.
// One instance per controlled axis; instances share no state.
type PIDController struct {
	cfg PIDConfig

	// State
	integral  float64
	prevError float64
	prevTime  time.Time
	lastD     float64
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	if cfg.MinDt <= 0 {
		cfg.MinDt = DefaultMinDt
	}
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.prevTime = time.Time{}
	pid.lastD = 0.0
}

// Calculate advances the controller by dt seconds and returns the clamped output.
//
// dt below MinDt (or not finite) is floored to MinDt so the derivative term
// stays bounded.
func (pid *PIDController) Calculate(dt, setpoint, measurement float64) float64 {
	if !(dt >= pid.cfg.MinDt) || math.IsInf(dt, 0) {
		dt = pid.cfg.MinDt
	}

	error := setpoint - measurement

	// Proportional term
	p := pid.cfg.Kp * error

	// Integral term
	pid.integral += error * dt
	if limit := pid.cfg.IntegralLimit; limit > 0 {
		pid.integral = ClampFloat(pid.integral, -limit, limit)
	}
	i := pid.cfg.Ki * pid.integral

	// Derivative term on error
	d := pid.cfg.Kd * (error - pid.prevError) / dt
	pid.lastD = d

	pid.prevError = error

	// Saturation only; the integral keeps accumulating while saturated
	return ClampFloat(p+i+d, pid.cfg.OutputMin, pid.cfg.OutputMax)
}

// CalculateAt measures dt from the previous call. The first call after
// construction or Reset uses MinDt.
func (pid *PIDController) CalculateAt(now time.Time, setpoint, measurement float64) float64 {
	dt := pid.cfg.MinDt
	if !pid.prevTime.IsZero() {
		dt = now.Sub(pid.prevTime).Seconds()
	}
	pid.prevTime = now
	return pid.Calculate(dt, setpoint, measurement)
}

// MarkTime sets the reference instant for the next CalculateAt.
func (pid *PIDController) MarkTime(now time.Time) {
	pid.prevTime = now
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
		D:        pid.lastD,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
	D        float64
}

// GetError returns the most recent error
func (pid *PIDController) GetError() float64 {
	return pid.prevError
}

// GetIntegral returns the current integral term value
func (pid *PIDController) GetIntegral() float64 {
	return pid.integral
}

// Config returns the controller configuration.
func (pid *PIDController) Config() PIDConfig {
	return pid.cfg
}
