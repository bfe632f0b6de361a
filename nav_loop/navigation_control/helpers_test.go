package control

import (
	"context"
	"math"
	"sync"

	"waypoint-nav/utils"
)

type recordingPublisher struct {
	mu   sync.Mutex
	cmds []VelocityCommand
	err  error
}

func (p *recordingPublisher) PublishVelocity(_ context.Context, cmd VelocityCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cmds = append(p.cmds, cmd)
	return nil
}

func (p *recordingPublisher) published() []VelocityCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]VelocityCommand(nil), p.cmds...)
}

func (p *recordingPublisher) last() (VelocityCommand, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cmds) == 0 {
		return VelocityCommand{}, false
	}
	return p.cmds[len(p.cmds)-1], true
}

type fixedPose Pose2D

func (p fixedPose) Pose() Pose2D { return Pose2D(p) }

func quaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

func nopLogger() *utils.Logger {
	return utils.NewNopLogger()
}
