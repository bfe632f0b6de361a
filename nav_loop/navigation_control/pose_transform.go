package control

import (
	"math"
	"sync"

	"github.com/golang/geo/r2"
)

// Pose2D is a planar pose in the world frame.
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"` // rad
}

func (p Pose2D) Position() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

type Vector3 struct {
	X, Y, Z float64
}

type Quaternion struct {
	X, Y, Z, W float64
}

// OdometrySample is one raw odometry reading in the sensor's own frame.
type OdometrySample struct {
	Position    Vector3
	Orientation Quaternion
}

// YawFromQuaternion extracts the rotation about z.
func YawFromQuaternion(q Quaternion) float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// PoseSource provides the latest known robot pose.
type PoseSource interface {
	Pose() Pose2D
}

// PoseTransform turns raw odometry into a world-frame pose whose origin is
// the pose reported by the first sample.
type PoseTransform struct {
	mu          sync.RWMutex
	initialized bool
	origin      Pose2D
	global      Pose2D
	samples     uint64
}

func NewPoseTransform() *PoseTransform {
	return &PoseTransform{}
}

// Update folds in one odometry sample and returns the new world pose.
func (t *PoseTransform) Update(s OdometrySample) Pose2D {
	yaw := YawFromQuaternion(s.Orientation)
	raw := r2.Point{X: s.Position.X, Y: s.Position.Y}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		o := Rotate(raw, yaw)
		t.origin = Pose2D{X: o.X, Y: o.Y, Theta: yaw}
		t.initialized = true
	}

	p := Rotate(raw, t.origin.Theta).Sub(t.origin.Position())
	t.global = Pose2D{
		X:     p.X,
		Y:     p.Y,
		Theta: NormalizeAngle(yaw - t.origin.Theta),
	}
	t.samples++
	return t.global
}

// Pose returns the last computed pose, or the zero pose before any sample.
func (t *PoseTransform) Pose() Pose2D {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.global
}

// Origin returns the rotated first sample and whether it has been recorded.
func (t *PoseTransform) Origin() (Pose2D, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.origin, t.initialized
}

func (t *PoseTransform) Samples() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.samples
}

// Reset forgets the origin; the next sample defines a new one.
func (t *PoseTransform) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = false
	t.origin = Pose2D{}
	t.global = Pose2D{}
	t.samples = 0
}
