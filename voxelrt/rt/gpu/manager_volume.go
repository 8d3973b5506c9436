//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

func (m *GpuBufferManager) releaseVolume() {
	for _, v := range m.AtlasViews {
		v.Release()
	}
	m.AtlasViews = nil
	for _, b := range m.MipLevelBufs {
		b.Release()
	}
	m.MipLevelBufs = nil
	if m.AtlasView != nil {
		m.AtlasView.Release()
		m.AtlasView = nil
	}
	if m.Atlas != nil {
		m.Atlas.Release()
		m.Atlas = nil
	}
	if m.RadianceView != nil {
		m.RadianceView.Release()
		m.RadianceView = nil
	}
	if m.Radiance != nil {
		m.Radiance.Release()
		m.Radiance = nil
	}
}

func (m *GpuBufferManager) createVolumeTexture(label string, w, h, d, mips int) *wgpu.Texture {
	tex, err := m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: uint32(d)},
		MipLevelCount: uint32(mips),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension3D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		panic(err)
	}
	return tex
}

func volumeView(tex *wgpu.Texture, label string, base, count int) *wgpu.TextureView {
	v, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label,
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       wgpu.TextureViewDimension3D,
		BaseMipLevel:    uint32(base),
		MipLevelCount:   uint32(count),
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		panic(err)
	}
	return v
}

// SetupVolume (re)allocates the voxel attributes, the radiance volume and
// the directional atlas for a grid of dim cells per side.
func (m *GpuBufferManager) SetupVolume(dim int) {
	m.releaseVolume()
	m.Dimension = dim

	cells := dim * dim * dim
	for _, b := range []struct {
		name string
		buf  **wgpu.Buffer
	}{
		{"VoxelAlbedo", &m.AlbedoBuf},
		{"VoxelNormal", &m.NormalBuf},
		{"VoxelEmission", &m.EmissionBuf},
	} {
		if *b.buf != nil {
			(*b.buf).Release()
			*b.buf = nil
		}
		m.ensureBuffer(b.name, b.buf, make([]byte, cells*4), wgpu.BufferUsageStorage, 0)
	}

	m.Radiance = m.createVolumeTexture("Voxel Radiance", dim, dim, dim, 1)
	m.RadianceView = volumeView(m.Radiance, "Voxel Radiance", 0, 1)

	w, h, d := AtlasExtent(dim)
	mips := AtlasLevels(dim)
	m.Atlas = m.createVolumeTexture("Voxel Directional Atlas", w, h, d, mips)
	m.AtlasView = volumeView(m.Atlas, "Voxel Directional Atlas", 0, mips)

	m.AtlasViews = make([]*wgpu.TextureView, mips)
	for i := 0; i < mips; i++ {
		m.AtlasViews[i] = volumeView(m.Atlas, fmt.Sprintf("Directional Mip %d", i), i, 1)
	}

	// one uniform per chain dispatch, written once
	m.MipLevelBufs = make([]*wgpu.Buffer, mips-1)
	for i := range m.MipLevelBufs {
		m.ensureBuffer(fmt.Sprintf("MipLevel %d", i), &m.MipLevelBufs[i], EncodeMipLevel(i), wgpu.BufferUsageUniform, 0)
	}
}
