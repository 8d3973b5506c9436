package volume

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Texture2D is a float RGBA render target.
type Texture2D struct {
	Label  string
	Width  int
	Height int
	Pix    []mgl32.Vec4
}

func NewTexture2D(label string, w, h int) *Texture2D {
	return &Texture2D{Label: label, Width: w, Height: h, Pix: make([]mgl32.Vec4, w*h)}
}

func (t *Texture2D) Load(x, y int) mgl32.Vec4 {
	return t.Pix[y*t.Width+x]
}

func (t *Texture2D) Store(x, y int, v mgl32.Vec4) {
	t.Pix[y*t.Width+x] = v
}

func (t *Texture2D) Fill(v mgl32.Vec4) {
	for i := range t.Pix {
		t.Pix[i] = v
	}
}

// Image converts to 8 bit RGBA, clamping every channel.
func (t *Texture2D) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			p := Pack(t.Load(x, y))
			img.SetRGBA(x, y, color.RGBA{p[0], p[1], p[2], p[3]})
		}
	}
	return img
}

// GBuffer holds the per pixel surface attributes of the geometry pass.
// Depth is window depth in [0, 1]; 1 marks background.
type GBuffer struct {
	Width    int
	Height   int
	Albedo   *Texture2D
	Normal   *Texture2D
	Specular *Texture2D
	Emission *Texture2D
	Depth    []float32
}

func NewGBuffer(w, h int) *GBuffer {
	g := &GBuffer{
		Width:    w,
		Height:   h,
		Albedo:   NewTexture2D("gbuffer albedo", w, h),
		Normal:   NewTexture2D("gbuffer normal", w, h),
		Specular: NewTexture2D("gbuffer specular", w, h),
		Emission: NewTexture2D("gbuffer emission", w, h),
		Depth:    make([]float32, w*h),
	}
	g.Clear()
	return g
}

func (g *GBuffer) Clear() {
	g.Albedo.Fill(mgl32.Vec4{})
	g.Normal.Fill(mgl32.Vec4{})
	g.Specular.Fill(mgl32.Vec4{})
	g.Emission.Fill(mgl32.Vec4{})
	for i := range g.Depth {
		g.Depth[i] = 1
	}
}

func (g *GBuffer) DepthAt(x, y int) float32 {
	return g.Depth[y*g.Width+x]
}

func (g *GBuffer) SetDepth(x, y int, d float32) {
	g.Depth[y*g.Width+x] = d
}

// ToneMap applies exposure tone mapping followed by gamma 2.2.
func ToneMap(c mgl32.Vec3, exposure float32) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := 0; i < 3; i++ {
		v := 1 - math32.Exp(-c[i]*exposure)
		out[i] = math32.Pow(math32.Max(v, 0), 1/2.2)
	}
	return out
}
