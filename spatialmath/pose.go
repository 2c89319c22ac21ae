// Package spatialmath defines the affine poses anchors are placed with and the spatial operations
// the placement engine performs on them.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Column indices of a Pose. The order is fixed by the stored record layout.
const (
	BasisX = iota
	BasisY
	BasisZ
	TranslationColumn
)

// Pose is a 4x4 affine transform held column-major as three basis columns followed by the
// translation column. A surface hit on a horizontal plane carries the plane normal in basis Y.
type Pose struct {
	m mgl64.Mat4
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{mgl64.Ident4()}
}

// NewPose wraps a homogeneous matrix. The bottom row is forced to (0, 0, 0, 1) so that the
// translation column always has w = 1.
func NewPose(m mgl64.Mat4) Pose {
	m[3], m[7], m[11], m[15] = 0, 0, 0, 1
	return Pose{m}
}

// NewPoseFromColumns builds a pose from its four columns.
func NewPoseFromColumns(x, y, z, t mgl64.Vec4) Pose {
	return NewPose(mgl64.Mat4FromCols(x, y, z, t))
}

// NewPoseFromTranslation returns an unrotated, unscaled pose at the given point.
func NewPoseFromTranslation(pt r3.Vector) Pose {
	return Pose{mgl64.Translate3D(pt.X, pt.Y, pt.Z)}
}

// Matrix returns a copy of the underlying homogeneous matrix.
func (p Pose) Matrix() mgl64.Mat4 {
	return p.m
}

// Column returns column i, one of BasisX, BasisY, BasisZ or TranslationColumn.
func (p Pose) Column(i int) mgl64.Vec4 {
	return p.m.Col(i)
}

// Components returns the sixteen matrix entries in column order.
func (p Pose) Components() [16]float64 {
	return p.m
}

// Translation returns the position of the pose.
func (p Pose) Translation() r3.Vector {
	t := p.m.Col(TranslationColumn)
	return r3.Vector{X: t[0], Y: t[1], Z: t[2]}
}

// WithTranslation returns a copy of the pose moved to pt, leaving the basis untouched.
func (p Pose) WithTranslation(pt r3.Vector) Pose {
	p.m.SetCol(TranslationColumn, mgl64.Vec4{pt.X, pt.Y, pt.Z, 1})
	return p
}

// Axis returns basis column i as a vector, including any scale it carries.
func (p Pose) Axis(i int) r3.Vector {
	c := p.m.Col(i)
	return r3.Vector{X: c[0], Y: c[1], Z: c[2]}
}

// Normal returns the unit basis Y direction, which is the surface normal of a plane hit.
func (p Pose) Normal() r3.Vector {
	n := p.Axis(BasisY)
	if n.Norm() == 0 {
		return r3.Vector{Y: 1}
	}
	return n.Normalize()
}

// Orientation returns the rotation part of the pose as a unit quaternion, with any basis scale
// divided out.
func (p Pose) Orientation() quat.Number {
	x, y, z := p.Axis(BasisX).Normalize(), p.Axis(BasisY).Normalize(), p.Axis(BasisZ).Normalize()
	rot := mgl64.Mat3FromCols(
		mgl64.Vec3{x.X, x.Y, x.Z},
		mgl64.Vec3{y.X, y.Y, y.Z},
		mgl64.Vec3{z.X, z.Y, z.Z},
	)
	q := mgl64.Mat4ToQuat(rot.Mat4()).Normalize()
	return quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
}

// IsFinite reports whether every component of the pose is a finite number.
func (p Pose) IsFinite() bool {
	for _, v := range p.m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Compose returns the product a * b.
func Compose(a, b Pose) Pose {
	return NewPose(a.m.Mul4(b.m))
}

// RotateAboutNormal turns the pose by the given angle (radians) about its own basis Y axis. The
// translation and the direction of the normal are preserved.
func RotateAboutNormal(p Pose, radians float64) Pose {
	return Compose(p, Pose{mgl64.HomogRotate3DY(radians)})
}

// ScaleBasis multiplies the three basis columns by s. The translation column is untouched.
func ScaleBasis(p Pose, s float64) Pose {
	for i := BasisX; i <= BasisZ; i++ {
		p.m.SetCol(i, p.m.Col(i).Mul(s))
	}
	return p
}

// BasisScale returns the length of the basis X column.
func BasisScale(p Pose) float64 {
	return p.Axis(BasisX).Norm()
}

// YawBetween returns the signed angle (radians) that takes the orientation of a to that of b,
// measured about the normal of a. Rotations about other axes contribute nothing.
func YawBetween(a, b Pose) float64 {
	between := quat.Mul(b.Orientation(), quat.Conj(a.Orientation()))
	if between.Real < 0 {
		between = quat.Scale(-1, between)
	}
	axis := r3.Vector{X: between.Imag, Y: between.Jmag, Z: between.Kmag}
	return 2 * math.Atan2(axis.Dot(a.Normal()), between.Real)
}

// PlanarDistance returns the distance between a and b once the component of their separation
// along normal has been removed.
func PlanarDistance(a, b, normal r3.Vector) float64 {
	d := b.Sub(a)
	if normal.Norm() == 0 {
		return d.Norm()
	}
	n := normal.Normalize()
	return d.Sub(n.Mul(d.Dot(n))).Norm()
}

// PoseAlmostEqual returns whether every component of a and b is within epsilon.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	return a.m.ApproxEqualThreshold(b.m, epsilon)
}
