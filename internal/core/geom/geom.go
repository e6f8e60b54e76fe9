// Package geom holds the vector math shared by the core and the leaf systems.
package geom

import "math"

type Vector3 struct {
	X, Y, Z float64
}

func Vec3(x, y, z float64) Vector3 { return Vector3{X: x, Y: y, Z: z} }

func (v Vector3) Add(o Vector3) Vector3      { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3      { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(s float64) Vector3    { return Vector3{v.X * s, v.Y * s, v.Z * s} }
func (v Vector3) Dot(o Vector3) float64      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector3) Len() float64               { return math.Sqrt(v.Dot(v)) }
func (v Vector3) Distance(o Vector3) float64 { return v.Sub(o).Len() }
func (v Vector3) IsZero() bool               { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Normalize returns the unit vector, or the zero vector for zero input.
func (v Vector3) Normalize() Vector3 {
	l := v.Len()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// Slice returns the components in x, y, z order.
func (v Vector3) Slice() []float64 { return []float64{v.X, v.Y, v.Z} }

type Quaternion struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{W: 1}

// Yaw builds a rotation of angle radians around the Y axis.
func Yaw(angle float64) Quaternion {
	s, c := math.Sincos(angle / 2)
	return Quaternion{Y: s, W: c}
}

// YawAngle extracts the rotation around Y, assuming a pure yaw quaternion.
func (q Quaternion) YawAngle() float64 {
	return 2 * math.Atan2(q.Y, q.W)
}

func (q Quaternion) Slice() []float64 { return []float64{q.X, q.Y, q.Z, q.W} }

// AABB is an axis aligned bounding box.
type AABB struct {
	Min, Max Vector3
}

// Box builds a box centered on c with half extents h.
func Box(c, h Vector3) AABB {
	return AABB{Min: c.Sub(h), Max: c.Add(h)}
}

func (b AABB) Contains(p Vector3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

func (b AABB) Center() Vector3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// SegmentSphere reports whether the segment a-b passes within r of c and, if
// so, the parametric distance along the segment to the closest point.
func SegmentSphere(a, b, c Vector3, r float64) (float64, bool) {
	d := b.Sub(a)
	l2 := d.Dot(d)
	t := 0.0
	if l2 > 0 {
		t = c.Sub(a).Dot(d) / l2
		t = math.Max(0, math.Min(1, t))
	}
	closest := a.Add(d.Scale(t))
	if closest.Distance(c) > r {
		return 0, false
	}
	return t * math.Sqrt(l2), true
}
