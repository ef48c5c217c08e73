package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFovY     = 40.0
	DefaultNear     = 0.01
	DefaultFar      = 3000.0
	DefaultDistance = 2.0

	minDistance = 0.05
	maxDistance = 100.0
	pitchLimit  = math32.Pi/2 - 0.01
)

// OrbitCamera circles Target at Distance. Y is up. Yaw 0, pitch 0 places
// the eye on +Z looking at the target.
type OrbitCamera struct {
	Target      mgl32.Vec3
	Distance    float32
	Yaw         float32
	Pitch       float32
	FovY        float32 // degrees
	Near        float32
	Far         float32
	Sensitivity float32
}

func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Target:      mgl32.Vec3{0, 0, 0},
		Distance:    DefaultDistance,
		FovY:        DefaultFovY,
		Near:        DefaultNear,
		Far:         DefaultFar,
		Sensitivity: 0.005,
	}
}

func (c *OrbitCamera) Position() mgl32.Vec3 {
	cp := math32.Cos(c.Pitch)
	offset := mgl32.Vec3{
		cp * math32.Sin(c.Yaw),
		math32.Sin(c.Pitch),
		cp * math32.Cos(c.Yaw),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

// Rotate applies a pointer drag in pixels.
func (c *OrbitCamera) Rotate(dx, dy float32) {
	c.Yaw -= dx * c.Sensitivity
	c.Pitch += dy * c.Sensitivity
	if c.Pitch > pitchLimit {
		c.Pitch = pitchLimit
	}
	if c.Pitch < -pitchLimit {
		c.Pitch = -pitchLimit
	}
}

// Zoom scales the orbit distance; factor < 1 moves closer.
func (c *OrbitCamera) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	c.Distance *= factor
	if c.Distance < minDistance {
		c.Distance = minDistance
	}
	if c.Distance > maxDistance {
		c.Distance = maxDistance
	}
}

func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix uses OpenGL clip conventions (z in [-1, 1]).
func (c *OrbitCamera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}
