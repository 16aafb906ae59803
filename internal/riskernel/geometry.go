// Package riskernel implements the near-field reflectarray math of
// spec.md §4.4: element geometry, local frame, phase synthesis, phase
// quantization, far-field pattern sweep, sidelobe metrics, and reference
// validation. Every operation is pure and deterministic given its inputs;
// the only failures are InvalidConfig violations of the invariants in §3.
package riskernel

import (
	"math"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// Vec3 is a plain 3-vector.
type Vec3 struct{ X, Y, Z float64 }

func (v Vec3) add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) norm() float64        { return math.Sqrt(v.dot(v)) }

func (v Vec3) cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) normalized(name string) (Vec3, error) {
	n := v.norm()
	if n <= 0 {
		return Vec3{}, apperr.New(apperr.KindInvalidConfig, name+" must be a non-zero vector")
	}
	return v.scale(1 / n), nil
}

// Frame is the right-handed local panel frame of spec.md §4.4:
// z = normal, x = x_axis_hint projected orthogonal to z, y = z cross x.
type Frame struct {
	X, Y, Z Vec3
}

// ComputeLocalFrame builds the right-handed local frame from a surface
// normal and an x-axis hint, per spec.md §4.4.
func ComputeLocalFrame(normal, xAxisHint Vec3) (Frame, error) {
	z, err := normal.normalized("normal")
	if err != nil {
		return Frame{}, err
	}
	hint, err := xAxisHint.normalized("x_axis_hint")
	if err != nil {
		return Frame{}, err
	}
	proj := hint.sub(z.scale(hint.dot(z)))
	x, err := proj.normalized("x_axis_hint")
	if err != nil {
		return Frame{}, apperr.New(apperr.KindInvalidConfig, "normal and x_axis_hint must not be parallel")
	}
	y := z.cross(x)
	return Frame{X: x, Y: y, Z: z}, nil
}

// Geometry holds the element center grid and the frame it was built in.
// Centers is row-major: Centers[j][i] is element (i, j), i in [0,nx), j in
// [0,ny), matching spec.md §4.4's iteration order.
type Geometry struct {
	Frame   Frame
	Centers [][]Vec3
	NX, NY  int
	DX, DY  float64
	Origin  Vec3
}

// ComputeElementCenters places nx*ny elements on a dx,dy grid centered at
// the frame origin, per spec.md §4.4:
// p(i,j) = origin + (i-(nx-1)/2)*dx*x + (j-(ny-1)/2)*dy*y.
func ComputeElementCenters(nx, ny int, dx, dy float64, origin, normal, xAxisHint Vec3) (*Geometry, error) {
	if nx <= 0 || ny <= 0 {
		return nil, apperr.New(apperr.KindInvalidConfig, "nx and ny must be positive")
	}
	if dx <= 0 || dy <= 0 {
		return nil, apperr.New(apperr.KindInvalidConfig, "dx and dy must be positive")
	}
	frame, err := ComputeLocalFrame(normal, xAxisHint)
	if err != nil {
		return nil, err
	}
	centers := make([][]Vec3, ny)
	for j := 0; j < ny; j++ {
		row := make([]Vec3, nx)
		yOff := (float64(j) - float64(ny-1)/2) * dy
		for i := 0; i < nx; i++ {
			xOff := (float64(i) - float64(nx-1)/2) * dx
			row[i] = origin.add(frame.X.scale(xOff)).add(frame.Y.scale(yOff))
		}
		centers[j] = row
	}
	return &Geometry{Frame: frame, Centers: centers, NX: nx, NY: ny, DX: dx, DY: dy, Origin: origin}, nil
}
