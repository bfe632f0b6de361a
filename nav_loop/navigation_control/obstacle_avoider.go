package control

// Behavior turns the current pose and proximity signal into a command.
type Behavior interface {
	Control(pose Pose2D, proximity float64) VelocityCommand
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(pose Pose2D, proximity float64) VelocityCommand

func (f BehaviorFunc) Control(pose Pose2D, proximity float64) VelocityCommand {
	return f(pose, proximity)
}

// ObstacleAvoider is the reaction used while an obstacle is inside the
// threshold. It holds the robot still; a real avoidance policy can replace
// it through the Behavior interface without touching the Supervisor.
type ObstacleAvoider struct{}

func NewObstacleAvoider() *ObstacleAvoider {
	return &ObstacleAvoider{}
}

func (a *ObstacleAvoider) Control(Pose2D, float64) VelocityCommand {
	return ZeroCommand()
}
