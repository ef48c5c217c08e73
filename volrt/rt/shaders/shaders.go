package shaders

import (
	_ "embed"
)

//go:embed ray_geometry.wgsl
var RayGeometryWGSL string

//go:embed ray_march.wgsl
var RayMarchWGSL string

//go:embed text.wgsl
var TextWGSL string
