package main

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.einride.tech/can"

	control "waypoint-nav/nav_loop/navigation_control"
	"waypoint-nav/utils"
)

// Frame names the node relies on.
const (
	frameOdomPosition    = "ODOM_POSITION"
	frameOdomOrientation = "ODOM_ORIENTATION"
	frameScanSector      = "SCAN_SECTOR"
	frameTargetLoc       = "TARGET_LOC"
)

// nav_state values in DEBUG_POSE.
const (
	navStateSeek  = 0
	navStateAvoid = 1
	navStateChase = 2
	navStateLost  = 3
)

type eventKind int

const (
	eventNone eventKind = iota
	eventOdometry
	eventScan
	eventTarget
)

// sensorEvent is one complete sample assembled from one or more frames.
type sensorEvent struct {
	kind   eventKind
	odom   control.OdometrySample
	scan   control.ScanSample
	target control.TargetSample
}

// Bridge turns received frames into control samples. ODOM_ORIENTATION closes
// an odometry sample with the ODOM_POSITION received since the previous
// sample; the last SCAN_SECTOR of a sweep closes a scan.
type Bridge struct {
	cmap *utils.CANMap
	log  *utils.Logger
	scan control.ScanSample // bounds only

	havePos bool
	pos     control.Vector3

	sectorNext int
	ranges     []float64
}

func NewBridge(cmap *utils.CANMap, scanCfg ScanConfig, log *utils.Logger) (*Bridge, error) {
	for _, name := range []string{frameOdomPosition, frameOdomOrientation, frameScanSector, frameTargetLoc} {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, errors.Wrap(err, "can map")
		}
	}
	return &Bridge{
		cmap: cmap,
		log:  log,
		scan: control.ScanSample{RangeMin: scanCfg.RangeMin, RangeMax: scanCfg.RangeMax},
	}, nil
}

// Decode consumes one frame. Frames that do not complete a sample, and
// frames the node does not receive, yield eventNone.
func (b *Bridge) Decode(frame can.Frame) (sensorEvent, error) {
	fd, ok := b.cmap.ByID[frame.ID]
	if !ok || fd.Direction != utils.DirectionRX {
		return sensorEvent{}, nil
	}

	_, values, err := b.cmap.DecodeFrame(frame)
	if err != nil {
		return sensorEvent{}, err
	}

	switch fd.Name {
	case frameOdomPosition:
		b.pos = control.Vector3{X: values["odom_x"], Y: values["odom_y"]}
		b.havePos = true
		return sensorEvent{}, nil

	case frameOdomOrientation:
		if !b.havePos {
			return sensorEvent{}, errors.New("orientation without a fresh position")
		}
		b.havePos = false
		return sensorEvent{
			kind: eventOdometry,
			odom: control.OdometrySample{
				Position: b.pos,
				Orientation: control.Quaternion{
					X: values["odom_qx"],
					Y: values["odom_qy"],
					Z: values["odom_qz"],
					W: values["odom_qw"],
				},
			},
		}, nil

	case frameScanSector:
		return b.sector(values)

	case frameTargetLoc:
		return sensorEvent{
			kind:   eventTarget,
			target: control.TargetSample{Bearing: values["target_bearing"], Range: values["target_range"]},
		}, nil
	}
	return sensorEvent{}, nil
}

func (b *Bridge) sector(values map[string]float64) (sensorEvent, error) {
	index := int(values["sector_index"])
	count := int(values["sector_count"])
	if count <= 0 || index >= count {
		return sensorEvent{}, errors.Errorf("bad scan sector %d of %d", index, count)
	}

	if index == 0 {
		b.ranges = b.ranges[:0]
		b.sectorNext = 0
	}
	if index != b.sectorNext {
		expected := b.sectorNext
		b.ranges = b.ranges[:0]
		b.sectorNext = 0
		return sensorEvent{}, errors.Errorf("scan sector %d out of order (want %d), sweep dropped", index, expected)
	}

	b.ranges = append(b.ranges, values["range_0"], values["range_1"], values["range_2"])
	b.sectorNext++
	if index < count-1 {
		return sensorEvent{}, nil
	}

	scan := b.scan
	scan.Ranges = append([]float64(nil), b.ranges...)
	b.ranges = b.ranges[:0]
	b.sectorNext = 0
	b.log.Trace("scan closed: %d sectors, %d readings", count, len(scan.Ranges))
	return sensorEvent{kind: eventScan, scan: scan}, nil
}

// canCommandPublisher sends velocity commands as CMD_VEL frames.
type canCommandPublisher struct {
	mu      sync.Mutex
	cmap    *utils.CANMap
	frame   string
	writer  utils.CANWriter
	enabled bool
	sent    uint64
}

func newCANCommandPublisher(cmap *utils.CANMap, frame string, writer utils.CANWriter) (*canCommandPublisher, error) {
	fd, err := cmap.FrameByName(frame)
	if err != nil {
		return nil, errors.Wrap(err, "command frame")
	}
	for _, sig := range []string{"linear_x", "angular_z", "drive_enable"} {
		if _, ok := fd.Signal(sig); !ok {
			return nil, errors.Errorf("command frame %s has no %s signal", frame, sig)
		}
	}
	return &canCommandPublisher{cmap: cmap, frame: frame, writer: writer, enabled: true}, nil
}

func (p *canCommandPublisher) PublishVelocity(ctx context.Context, cmd control.VelocityCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.cmap.EncodeFrame(p.frame, map[string]float64{
		"linear_x":     cmd.LinearX,
		"angular_z":    cmd.AngularZ,
		"drive_enable": boolToFloat(p.enabled),
	})
	if err != nil {
		return errors.Wrap(err, "encode command")
	}
	if err := p.writer.WriteFrame(ctx, frame); err != nil {
		return errors.Wrapf(err, "transmit %s", p.frame)
	}
	p.sent++
	return nil
}

// release clears drive_enable on every later command.
func (p *canCommandPublisher) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
}

func (p *canCommandPublisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// encodePose builds the DEBUG_POSE frame.
func encodePose(cmap *utils.CANMap, frame string, pose control.Pose2D, navState int) (can.Frame, error) {
	return cmap.EncodeFrame(frame, map[string]float64{
		"pose_x":     pose.X,
		"pose_y":     pose.Y,
		"pose_theta": pose.Theta,
		"nav_state":  float64(navState),
	})
}

func navStateOf(state control.State) int {
	if state == control.StateAvoidObstacle {
		return navStateAvoid
	}
	return navStateSeek
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// sensorWatchdog reports when no sensor sample has arrived for longer than
// timeout, once per silent period.
type sensorWatchdog struct {
	timeout time.Duration
	last    time.Time
	silent  bool
}

// fed records a sample and reports whether it ended a silent period.
func (w *sensorWatchdog) fed(now time.Time) bool {
	w.last = now
	resumed := w.silent
	w.silent = false
	return resumed
}

// check reports the silence length the first time it exceeds the timeout.
func (w *sensorWatchdog) check(now time.Time) (time.Duration, bool) {
	age := now.Sub(w.last)
	if w.timeout <= 0 || w.silent || age <= w.timeout {
		return age, false
	}
	w.silent = true
	return age, true
}
