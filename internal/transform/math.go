// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Euler holds rotation angles in radians applied in intrinsic X, Y, Z order.
type Euler struct {
	X, Y, Z float64
}

// Up is the default up vector used by LookAt.
var Up = mgl64.Vec3{0, 1, 0}

// Quat converts the angles to a unit quaternion.
func (e Euler) Quat() mgl64.Quat {
	qx := mgl64.QuatRotate(e.X, mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(e.Y, mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(e.Z, mgl64.Vec3{0, 0, 1})
	return qx.Mul(qy).Mul(qz).Normalize()
}

// EulerFromQuat extracts XYZ angles from a unit quaternion.
func EulerFromQuat(q mgl64.Quat) Euler {
	m := q.Normalize().Mat4()
	m11, m12, m13 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m22, m23 := m.At(1, 1), m.At(1, 2)
	m32, m33 := m.At(2, 1), m.At(2, 2)

	var e Euler
	e.Y = math.Asin(mgl64.Clamp(m13, -1, 1))
	if math.Abs(m13) < 0.9999999 {
		e.X = math.Atan2(-m23, m33)
		e.Z = math.Atan2(-m12, m11)
	} else {
		e.X = math.Atan2(m32, m22)
		e.Z = 0
	}
	return e
}

// Compose builds the matrix translate * rotate * scale.
func Compose(position mgl64.Vec3, orientation mgl64.Quat, scale mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Translate3D(position[0], position[1], position[2]).
		Mul4(orientation.Normalize().Mat4()).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
}

// Decompose splits an affine matrix without shear into translation,
// rotation and scale. A negative determinant is folded into the X scale.
func Decompose(m mgl64.Mat4) (position mgl64.Vec3, orientation mgl64.Quat, scale mgl64.Vec3) {
	position = m.Col(3).Vec3()

	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	scale = mgl64.Vec3{sx, sy, sz}

	rot := mgl64.Ident4()
	if sx != 0 && sy != 0 && sz != 0 {
		rot = mgl64.Mat4FromCols(
			m.Col(0).Mul(1/sx),
			m.Col(1).Mul(1/sy),
			m.Col(2).Mul(1/sz),
			mgl64.Vec4{0, 0, 0, 1},
		)
	}
	orientation = mgl64.Mat4ToQuat(rot).Normalize()
	return position, orientation, scale
}

// LookRotation returns the orientation whose -Z axis points from eye towards
// target, built from a right-handed basis.
func LookRotation(eye, target, up mgl64.Vec3) mgl64.Quat {
	z := eye.Sub(target)
	if z.Len() == 0 {
		z = mgl64.Vec3{0, 0, 1}
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.Len() == 0 {
		if math.Abs(up[2]) == 1 {
			z[0] += 0.0001
		} else {
			z[2] += 0.0001
		}
		z = z.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	basis := mgl64.Mat3FromCols(x, y, z)
	return mgl64.Mat4ToQuat(basis.Mat4()).Normalize()
}
