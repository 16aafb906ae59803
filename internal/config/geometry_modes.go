package config

import "math"

// resolveGeometry fills in the effective nx, ny, dx, dy for a RisGeometry
// according to its Mode, following the three derivation rules of the
// original implementation (SPEC_FULL §SUPPLEMENTED item 1). "legacy" is a
// no-op: nx/ny/dx/dy are taken as given, matching spec.md §3 directly.
func resolveGeometry(g *RisGeometry) error {
	switch g.Mode {
	case "", GeometryLegacy:
		g.Mode = GeometryLegacy
		return requirePositive(g.NX, g.NY, g.DX, g.DY)
	case GeometrySizeDriven:
		return resolveSizeDriven(g)
	case GeometrySpacingDriven:
		return resolveSpacingDriven(g)
	default:
		return invalidGeometryMode(g.Mode)
	}
}

func requirePositive(nx, ny int, dx, dy float64) error {
	if nx <= 0 || ny <= 0 || dx <= 0 || dy <= 0 {
		return invalidConfigf("geometry.nx/ny/dx/dy must be positive for geometry_mode=legacy")
	}
	return nil
}

func resolveSizeDriven(g *RisGeometry) error {
	if g.WidthM <= 0 || g.HeightM <= 0 {
		return invalidConfigf("geometry.width_m/height_m must be positive for geometry_mode=size_driven")
	}
	targetDX, targetDY := g.TargetDXM, g.TargetDYM
	if targetDX <= 0 || targetDY <= 0 {
		if g.TargetDensityPerM2 <= 0 {
			return invalidConfigf("geometry_mode=size_driven requires target_dx_m/target_dy_m or target_density_per_m2")
		}
		targetDX = math.Sqrt(1.0 / g.TargetDensityPerM2)
		targetDY = targetDX
	}
	nx := maxInt(1, roundInt(g.WidthM/targetDX)+1)
	ny := maxInt(1, roundInt(g.HeightM/targetDY)+1)
	dxEff := g.WidthM
	if nx > 1 {
		dxEff = g.WidthM / float64(nx-1)
	}
	dyEff := g.HeightM
	if ny > 1 {
		dyEff = g.HeightM / float64(ny-1)
	}
	g.NX, g.NY, g.DX, g.DY = nx, ny, dxEff, dyEff
	return nil
}

func resolveSpacingDriven(g *RisGeometry) error {
	if g.DX <= 0 || g.DY <= 0 {
		return invalidConfigf("geometry.dx/dy must be positive for geometry_mode=spacing_driven")
	}
	if g.NumCellsX > 0 || g.NumCellsY > 0 {
		if g.NumCellsX <= 0 || g.NumCellsY <= 0 {
			return invalidConfigf("geometry_mode=spacing_driven requires both num_cells_x and num_cells_y when either is set")
		}
		g.NX, g.NY = g.NumCellsX, g.NumCellsY
		return nil
	}
	if g.WidthM <= 0 || g.HeightM <= 0 {
		return invalidConfigf("geometry_mode=spacing_driven requires num_cells_x/num_cells_y or width_m/height_m")
	}
	g.NX = maxInt(1, roundInt(g.WidthM/g.DX)+1)
	g.NY = maxInt(1, roundInt(g.HeightM/g.DY)+1)
	return nil
}

func roundInt(v float64) int { return int(math.Round(v)) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
