// Package lighting converts a sun position on the sky into the rotation of a
// directional light.
//
// The light points along its local +Z axis at rest. Rotations are reported as
// XYZ Euler angles (R = Rz * Ry * Rx), the default order of most DCC tools.
package lighting

import (
	stdmath "math"

	"github.com/Faultbox/sunalign/pkg/math"
)

// Up is the rest direction of the light.
var Up = math.UnitZ

// fallbackAxis is used when the sun sits on the up axis or its opposite and
// the cross product vanishes.
var fallbackAxis = math.UnitX

// axisFloor is the cross product length treated as zero. It sits just above
// the rounding residue of cos(pi/2), so latitude +-90 takes the fallback path.
const axisFloor = 1e-15

// SunDirection converts longitude/latitude in degrees to a unit direction.
// Latitude is elevation above the horizon (-90..90). The Y component is
// negated so that positive longitude turns clockwise seen from above, which
// matches how panoramas are wrapped around Z-up scenes.
func SunDirection(longitude, latitude float64) math.Vec3 {
	lonRad := longitude * stdmath.Pi / 180.0
	latRad := latitude * stdmath.Pi / 180.0

	x := stdmath.Cos(latRad) * stdmath.Cos(lonRad)
	y := stdmath.Cos(latRad) * stdmath.Sin(lonRad)
	z := stdmath.Sin(latRad)

	return math.Vec3{X: x, Y: -y, Z: z}
}

// AxisAngle returns the rotation that turns Up onto the sun direction.
// The angle is in [0, pi].
func AxisAngle(longitude, latitude float64) (axis math.Vec3, angle float64) {
	dir := SunDirection(longitude, latitude)
	angle = Up.Angle(dir)

	axis = Up.Cross(dir)
	if axis.Length() < axisFloor {
		// Straight up or down: snap to the exact angle so the zenith is the
		// identity rotation.
		if dir.Z > 0 {
			return fallbackAxis, 0
		}
		return fallbackAxis, stdmath.Pi
	}
	return axis.Normalize(), angle
}

// ToMatrix returns the rotation matrix aligning Up with the sun direction.
func ToMatrix(longitude, latitude float64) math.Mat3 {
	axis, angle := AxisAngle(longitude, latitude)
	return math.RotateAxis(axis, angle)
}

// ToQuat returns the same rotation as ToMatrix as a quaternion.
func ToQuat(longitude, latitude float64) math.Quat {
	axis, angle := AxisAngle(longitude, latitude)
	return math.QuatFromAxisAngle(axis, angle)
}

// ToRotation returns the XYZ Euler angles (radians) aligning Up with the sun
// direction. The same input always yields bit-identical output, so the Z
// component can be stored and compared later as a driver baseline.
func ToRotation(longitude, latitude float64) math.Euler {
	return ToMatrix(longitude, latitude).ToEuler()
}

// DriverZ is the Z rotation a tracking object needs after the environment
// mapping has been turned by mappingZ radians about Z. baseline is the Z
// component returned by ToRotation when the sun was located.
func DriverZ(baseline, mappingZ float64) float64 {
	return baseline - mappingZ
}

// Follow returns e with its Z component driven by the environment rotation.
func Follow(e math.Euler, baseline, mappingZ float64) math.Euler {
	e.Z = DriverZ(baseline, mappingZ)
	return e
}
