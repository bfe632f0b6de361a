package control

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Waypoint is a 2-D target, in the world frame unless stated otherwise.
type Waypoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func waypointOf(p r2.Point) Waypoint {
	return Waypoint{X: p.X, Y: p.Y}
}

func (w Waypoint) Point() r2.Point {
	return r2.Point{X: w.X, Y: w.Y}
}

// Heading is the bearing of the point from the frame origin, in radians.
func (w Waypoint) Heading() float64 {
	return math.Atan2(w.Y, w.X)
}

func (w Waypoint) Distance() float64 {
	return w.Point().Norm()
}

// Scale grows both coordinates by the fraction p, e.g. 0.10 for +10%.
func (w Waypoint) Scale(p float64) Waypoint {
	return waypointOf(w.Point().Mul(1 + p))
}

func (w Waypoint) String() string {
	return fmt.Sprintf("(%g, %g)", w.X, w.Y)
}

// rotation returns [[cos a, sin a], [-sin a, cos a]].
func rotation(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(2, 2, []float64{
		c, s,
		-s, c,
	})
}

// Rotate multiplies v by rotation(a). In the usual counter-clockwise sense
// this turns v by -a, which maps world vectors into a frame yawed by a.
// Every frame change in this package goes through Rotate.
func Rotate(v r2.Point, a float64) r2.Point {
	var out mat.VecDense
	out.MulVec(rotation(a), mat.NewVecDense(2, []float64{v.X, v.Y}))
	return r2.Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

// ToRobotFrame expresses a world-frame point in the frame of pose
// (x forward, y left).
func ToRobotFrame(w Waypoint, pose Pose2D) Waypoint {
	d := w.Point().Sub(pose.Position())
	return waypointOf(Rotate(d, pose.Theta))
}

// FromRobotFrame is the inverse of ToRobotFrame.
func FromRobotFrame(w Waypoint, pose Pose2D) Waypoint {
	return waypointOf(Rotate(w.Point(), -pose.Theta).Add(pose.Position()))
}

// ScaleAll returns a copy of route with every waypoint scaled by p.
func ScaleAll(route []Waypoint, p float64) []Waypoint {
	out := make([]Waypoint, len(route))
	for i, w := range route {
		out[i] = w.Scale(p)
	}
	return out
}
