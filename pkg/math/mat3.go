package math

import "math"

// Mat3 is a 3x3 rotation matrix in column-major order.
// Layout: [m0 m3 m6]
//
//	[m1 m4 m7]
//	[m2 m5 m8]
type Mat3 [9]float64

// gimbalEpsilon is the cos(pitch) threshold below which ToEuler treats the
// matrix as gimbal locked.
const gimbalEpsilon = 16 * 2.220446049250313e-16

// Identity3 returns an identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row, col.
func (m Mat3) At(row, col int) float64 {
	return m[col*3+row]
}

// RotateX returns a rotation matrix around the X axis.
// angle is in radians.
func RotateX(angle float64) Mat3 {
	c := math.Cos(angle)
	s := math.Sin(angle)

	return Mat3{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	}
}

// RotateY returns a rotation matrix around the Y axis.
// angle is in radians.
func RotateY(angle float64) Mat3 {
	c := math.Cos(angle)
	s := math.Sin(angle)

	return Mat3{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	}
}

// RotateZ returns a rotation matrix around the Z axis.
// angle is in radians.
func RotateZ(angle float64) Mat3 {
	c := math.Cos(angle)
	s := math.Sin(angle)

	return Mat3{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	}
}

// RotateAxis creates a rotation matrix around an arbitrary axis.
// axis should be normalized, angle is in radians.
func RotateAxis(axis Vec3, angle float64) Mat3 {
	c := math.Cos(angle)
	s := math.Sin(angle)
	t := 1 - c

	x, y, z := axis.X, axis.Y, axis.Z

	return Mat3{
		t*x*x + c, t*x*y + s*z, t*x*z - s*y,
		t*x*y - s*z, t*y*y + c, t*y*z + s*x,
		t*x*z + s*y, t*y*z - s*x, t*z*z + c,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat3) Mul(other Mat3) Mat3 {
	var result Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			result[col*3+row] =
				m[0*3+row]*other[col*3+0] +
					m[1*3+row]*other[col*3+1] +
					m[2*3+row]*other[col*3+2]
		}
	}
	return result
}

// MulVec3 transforms a vector by this matrix.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// Euler holds rotation angles in radians applied in XYZ order:
// first about X, then Y, then Z (R = Rz * Ry * Rx).
type Euler struct {
	X, Y, Z float64
}

// ToMat3 builds the rotation matrix for the Euler angles.
func (e Euler) ToMat3() Mat3 {
	return RotateZ(e.Z).Mul(RotateY(e.Y)).Mul(RotateX(e.X))
}

// ToEuler decomposes a rotation matrix into XYZ Euler angles.
// Pitch (Y) lies in [-pi/2, pi/2]. At gimbal lock Z is reported as zero and
// the whole remaining rotation goes to X.
func (m Mat3) ToEuler() Euler {
	cy := math.Hypot(m.At(0, 0), m.At(1, 0))
	if cy > gimbalEpsilon {
		return Euler{
			X: math.Atan2(m.At(2, 1), m.At(2, 2)),
			Y: math.Atan2(-m.At(2, 0), cy),
			Z: math.Atan2(m.At(1, 0), m.At(0, 0)),
		}
	}
	return Euler{
		X: math.Atan2(-m.At(1, 2), m.At(1, 1)),
		Y: math.Atan2(-m.At(2, 0), cy),
		Z: 0,
	}
}
