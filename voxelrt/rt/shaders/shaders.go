package shaders

import (
	_ "embed"
)

//go:embed common.wgsl
var CommonWGSL string

//go:embed clear_voxels.wgsl
var clearVoxelsWGSL string

//go:embed voxelize.wgsl
var voxelizeWGSL string

//go:embed inject_radiance.wgsl
var injectRadianceWGSL string

//go:embed mipmap_base.wgsl
var mipmapBaseWGSL string

//go:embed mipmap_volume.wgsl
var mipmapVolumeWGSL string

//go:embed geometry.wgsl
var geometryWGSL string

//go:embed cone_trace.wgsl
var coneTraceWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

// Compute stages share the declarations in CommonWGSL.
var (
	ClearVoxelsWGSL    = CommonWGSL + clearVoxelsWGSL
	VoxelizeWGSL       = CommonWGSL + voxelizeWGSL
	InjectRadianceWGSL = CommonWGSL + injectRadianceWGSL
	MipmapBaseWGSL     = CommonWGSL + mipmapBaseWGSL
	MipmapVolumeWGSL   = CommonWGSL + mipmapVolumeWGSL
	GeometryWGSL       = CommonWGSL + geometryWGSL
	ConeTraceWGSL      = CommonWGSL + coneTraceWGSL
)

// Compute lists every compute stage by pipeline label, in frame order.
func Compute() []Stage {
	return []Stage{
		{"clear voxels", ClearVoxelsWGSL},
		{"voxelize", VoxelizeWGSL},
		{"inject radiance", InjectRadianceWGSL},
		{"mipmap base", MipmapBaseWGSL},
		{"mipmap volume", MipmapVolumeWGSL},
		{"geometry", GeometryWGSL},
		{"cone trace", ConeTraceWGSL},
	}
}

type Stage struct {
	Label  string
	Source string
}
