package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitCube_OutwardCCW(t *testing.T) {
	verts := UnitCube()
	require.Len(t, verts, 36)

	for i := 0; i < len(verts); i += 3 {
		a := mgl32.Vec3(verts[i].Pos)
		b := mgl32.Vec3(verts[i+1].Pos)
		c := mgl32.Vec3(verts[i+2].Pos)
		n := b.Sub(a).Cross(c.Sub(a))
		center := a.Add(b).Add(c).Mul(1.0 / 3.0)
		if n.Dot(center) <= 0 {
			t.Errorf("triangle %d winds inward", i/3)
		}
		for _, p := range []mgl32.Vec3{a, b, c} {
			for _, v := range p {
				assert.InDelta(t, 0.5, abs32(v), 1e-6)
			}
		}
	}
}

func TestObjectToTexture(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, ObjectToTexture(mgl32.Vec3{-0.5, -0.5, -0.5}))
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, ObjectToTexture(mgl32.Vec3{0.5, 0.5, 0.5}))
}

func TestBox_Model(t *testing.T) {
	assert.Equal(t, mgl32.Ident4(), NewBox().Model())

	b := NewBox()
	b.Center = mgl32.Vec3{1, -2, 3}
	b.Orientation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	b.Size = mgl32.Vec3{2, 1, 0.5}

	// +x face center: scaled to x = 1, turned onto -z, then moved.
	got := mgl32.TransformCoordinate(mgl32.Vec3{0.5, 0, 0}, b.Model())
	assert.True(t, got.ApproxEqualThreshold(mgl32.Vec3{1, -2, 2}, 1e-5), "got %v", got)

	got = mgl32.TransformCoordinate(mgl32.Vec3{0, 0.5, 0}, b.Model())
	assert.True(t, got.ApproxEqualThreshold(mgl32.Vec3{1, -1.5, 3}, 1e-5), "got %v", got)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
