package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.einride.tech/can"
	"golang.org/x/sync/errgroup"

	control "waypoint-nav/nav_loop/navigation_control"
	"waypoint-nav/utils"
)

const (
	rxQueue          = 100
	maxRxErrors      = 10
	stopCommandGrace = time.Second
)

type Runner struct {
	mission Mission
	log     *utils.Logger
	runID   string

	cmap   *utils.CANMap
	reader utils.CANReader
	writer utils.CANWriter
	bridge *Bridge
	pub    *canCommandPublisher

	pose       *control.PoseTransform
	seeker     *control.GoalSeeker
	supervisor *control.Supervisor
	chaser     *control.ObjectChaser
	cast       *Posecast

	lastCmd control.VelocityCommand
	now     func() time.Time
}

// NewRunner loads the CAN map and opens one socket on the mission's interface
// for both directions.
func NewRunner(ctx context.Context, mission Mission, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(mission.CAN.MapPath)
	if err != nil {
		return nil, errors.Wrap(err, "load can map")
	}

	bus, err := utils.DialBus(ctx, mission.CAN.Interface)
	if err != nil {
		return nil, err
	}

	r, err := newRunner(mission, cmap, bus, bus, log)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return r, nil
}

func newRunner(mission Mission, cmap *utils.CANMap, reader utils.CANReader, writer utils.CANWriter, log *utils.Logger) (*Runner, error) {
	runID := uuid.NewString()
	log = log.With("run_id", runID, "mode", mission.Meta.ControlMode)

	bridge, err := NewBridge(cmap, mission.Navigation.Scan, log)
	if err != nil {
		return nil, err
	}
	pub, err := newCANCommandPublisher(cmap, mission.CAN.CmdFrame, writer)
	if err != nil {
		return nil, err
	}
	if mission.CAN.PoseFrame != "" {
		if _, err := cmap.FrameByName(mission.CAN.PoseFrame); err != nil {
			return nil, errors.Wrap(err, "pose frame")
		}
	}

	r := &Runner{
		mission: mission,
		log:     log,
		runID:   runID,
		cmap:    cmap,
		reader:  reader,
		writer:  writer,
		bridge:  bridge,
		pub:     pub,
		pose:    control.NewPoseTransform(),
		now:     time.Now,
	}

	switch mission.Meta.ControlMode {
	case ModeNavigate:
		route := mission.Route()
		r.seeker, err = control.NewGoalSeeker(mission.Navigation.GoalSeekerConfig, route, log)
		if err != nil {
			return nil, errors.Wrap(err, "goal seeker")
		}
		r.supervisor, err = control.NewSupervisor(mission.Navigation.SupervisorConfig,
			r.pose, r.seeker, control.NewObstacleAvoider(), pub, log)
		if err != nil {
			return nil, errors.Wrap(err, "supervisor")
		}
		log.Info("route of %d waypoints (scale %+.0f%%): %v", len(route), mission.Navigation.WaypointScale*100, route)

	case ModeChase:
		r.chaser, err = control.NewObjectChaser(mission.Chase, r.now(), pub, log)
		if err != nil {
			return nil, errors.Wrap(err, "object chaser")
		}

	default:
		return nil, errors.Errorf("unknown control mode %q", mission.Meta.ControlMode)
	}

	if mission.Debug.PosecastAddr != "" {
		r.cast = NewPosecast(log)
	}
	return r, nil
}

func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Run drives the node until ctx ends or a transmit fails. Either way the
// stop command is the last frame it sends.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting %s: mission=%s digest=%s iface=%s cmd_frame=%s",
		r.mission.Meta.ControlMode, r.mission.Meta.Name, r.mission.DigestString(),
		r.mission.CAN.Interface, r.mission.CAN.CmdFrame)

	g, gctx := errgroup.WithContext(ctx)
	rxChan := make(chan can.Frame, rxQueue)

	g.Go(func() error { return r.receiveLoop(gctx, rxChan) })
	g.Go(func() error { return r.eventLoop(gctx, rxChan) })
	if r.cast != nil {
		g.Go(func() error { return r.cast.Serve(gctx, r.mission.Debug.PosecastAddr) })
	}

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopCommandGrace)
	defer cancel()
	if stopErr := r.stop(stopCtx); stopErr != nil {
		r.log.Critical("Stop command failed: %v", stopErr)
		if err == nil || errors.Is(err, context.Canceled) {
			err = stopErr
		}
	}

	r.log.Info("Completed %s. commands_sent=%d", r.mission.Meta.ControlMode, r.pub.Sent())
	return err
}

func (r *Runner) stop(ctx context.Context) error {
	r.pub.release()
	if r.supervisor != nil {
		return r.supervisor.Shutdown(ctx)
	}
	return r.chaser.Shutdown(ctx)
}

func (r *Runner) eventLoop(ctx context.Context, rxChan <-chan can.Frame) error {
	timeout := time.Duration(r.mission.Debug.SensorTimeoutMS) * time.Millisecond
	watchdog := sensorWatchdog{timeout: timeout, last: r.now()}

	tick := timeout / 2
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping")
			return ctx.Err()

		case frame := <-rxChan:
			ev, err := r.bridge.Decode(frame)
			if err != nil {
				r.log.Warn("RX id=0x%X skipped: %v", frame.ID, err)
				continue
			}
			if ev.kind == eventNone {
				continue
			}
			if watchdog.fed(r.now()) {
				r.log.Info("Sensor feedback resumed")
			}
			if err := r.handle(ctx, ev); err != nil {
				return err
			}

		case now := <-ticker.C:
			if age, silent := watchdog.check(now); silent {
				r.log.Warn("No sensor feedback for %.1f ms - holding last command", age.Seconds()*1000)
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev sensorEvent) error {
	switch ev.kind {
	case eventOdometry:
		pose := r.pose.Update(ev.odom)
		return r.echoPose(ctx, pose)

	case eventScan:
		if r.supervisor == nil {
			return nil
		}
		cmd, err := r.supervisor.OnScan(ctx, ev.scan)
		if errors.Is(err, control.ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		r.lastCmd = cmd

	case eventTarget:
		if r.chaser == nil {
			return nil
		}
		cmd, err := r.chaser.OnTarget(ctx, r.now(), ev.target)
		if errors.Is(err, control.ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		r.lastCmd = cmd
	}
	return nil
}

func (r *Runner) navState() (int, string) {
	if r.chaser != nil {
		if r.chaser.Lost() {
			return navStateLost, "Lost"
		}
		return navStateChase, "Chase"
	}
	state := r.supervisor.State()
	return navStateOf(state), state.String()
}

// echoPose mirrors the pose on the bus and to posecast observers.
func (r *Runner) echoPose(ctx context.Context, pose control.Pose2D) error {
	code, name := r.navState()

	if r.mission.CAN.PoseFrame != "" {
		frame, err := encodePose(r.cmap, r.mission.CAN.PoseFrame, pose, code)
		if err != nil {
			return errors.Wrap(err, "encode pose")
		}
		if err := r.writer.WriteFrame(ctx, frame); err != nil {
			return errors.Wrapf(err, "transmit %s", r.mission.CAN.PoseFrame)
		}
	}

	if r.cast != nil {
		r.cast.Publish(PoseFrame{
			RunID:    r.runID,
			Digest:   r.mission.DigestString(),
			X:        pose.X,
			Y:        pose.Y,
			Theta:    pose.Theta,
			State:    name,
			LinearX:  r.lastCmd.LinearX,
			AngularZ: r.lastCmd.AngularZ,
			Stamp:    r.now(),
		})
	}

	r.log.Trace("pose x=%.3f y=%.3f theta=%.3f state=%s", pose.X, pose.Y, pose.Theta, name)
	return nil
}

// receiveLoop reads frames until ctx ends. A full queue drops the frame.
func (r *Runner) receiveLoop(ctx context.Context, rxChan chan<- can.Frame) error {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	failures := 0
	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			r.log.Error("RX error: %v", err)
			if failures >= maxRxErrors {
				return errors.Wrapf(err, "%d consecutive receive errors", failures)
			}
			continue
		}
		failures = 0

		select {
		case rxChan <- frame:
		default:
			r.log.Debug("RX queue full, dropped id=0x%X", frame.ID)
		}
		r.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}
