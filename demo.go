package vct

import (
	"fmt"

	"github.com/gekko3d/vct/voxelrt/rt/core"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBoxes drops a stack of boxes onto the cone tracing floor.
const SceneBoxes = "boxes"

// Demo is a ready to render scene with its camera and physics world.
type Demo struct {
	Name    string
	Scene   *core.Scene
	Camera  *core.Camera
	Physics *PhysicsWorld
}

// NewDemo builds the scene cfg.Scene names, sized to the configured window.
func NewDemo(cfg Config) (*Demo, error) {
	d := &Demo{
		Name:    cfg.Scene,
		Scene:   core.NewScene(),
		Camera:  core.NewCamera(cfg.Window.Width, cfg.Window.Height),
		Physics: NewPhysicsWorld(cfg.Physics),
	}
	switch cfg.Scene {
	case SceneConeTracing:
		d.coneTracing()
	case SceneBoxes:
		d.coneTracing()
		d.boxes()
	case SceneRaytracing:
		d.raytracing()
	default:
		return nil, fmt.Errorf("unknown scene %q", cfg.Scene)
	}
	return d, nil
}

func (d *Demo) coneTracing() {
	s := d.Scene
	green := core.NewMaterial(core.Color(0, 1, 0), mgl32.Vec4{})
	red := core.NewMaterial(core.Color(1, 0, 0), mgl32.Vec4{})
	yellow := core.NewMaterial(core.Color(1, 1, 0), mgl32.Vec4{})

	s.AddShape("cube", core.Cube(), green).
		SetPosition(mgl32.Vec3{-0.44, 0, -0.3}).
		SetScale(mgl32.Vec3{0.2, 0.2, 0.2}).
		RotateY(25)
	s.AddShape("sphere", core.UVSphere(16, 32), red).
		SetPosition(mgl32.Vec3{0, 0, 0.2}).
		SetScale(mgl32.Vec3{0.2, 0.2, 0.2})
	floor := s.AddShape("floor", core.Cube(), yellow).
		SetPosition(mgl32.Vec3{0, -0.5, 0}).
		SetScale(mgl32.Vec3{1, 0.01, 1})
	s.AddLight(core.DefaultLight())

	d.Physics.GroundY = floor.Transform.Position.Y() + floor.Transform.Scale.Y()
	d.Physics.HasGround = true
}

func (d *Demo) boxes() {
	s := d.Scene
	colors := []mgl32.Vec4{core.Color(0.9, 0.9, 0.9), core.Color(0.2, 0.4, 1), core.Color(1, 0.5, 0.1)}
	const half = 0.08
	for i, c := range colors {
		mat := core.NewMaterial(c, mgl32.Vec4{})
		n := s.AddShape(fmt.Sprintf("box %d", i), core.Cube(), mat).
			SetPosition(mgl32.Vec3{0.4, 0.1 + float32(i)*0.3, -0.1 + float32(i)*0.05}).
			SetScale(mgl32.Vec3{half, half, half})
		d.Physics.Add(n, mgl32.Vec3{half, half, half}, 1)
	}
	// an emissive block so the drop shows up in the indirect light
	lamp := core.NewMaterial(core.Color(1, 1, 1), mgl32.Vec4{1, 0.8, 0.5, 1})
	n := s.AddShape("lamp", core.Cube(), lamp).
		SetPosition(mgl32.Vec3{0.6, -0.45, 0.5}).
		SetScale(mgl32.Vec3{0.05, 0.05, 0.05})
	d.Physics.AddStatic(n, mgl32.Vec3{0.05, 0.05, 0.05})
}

func (d *Demo) raytracing() {
	s := d.Scene
	cam := d.Camera
	cam.Eye = mgl32.Vec3{2, 3, 10}
	cam.Target = mgl32.Vec3{}
	cam.Fov = 35
	cam.Near = 0.01
	cam.Far = 100

	green := core.Material{Diffuse: core.Color(0.3, 0.8, 0), Specular: mgl32.Vec4{1, 1, 1, 1}, Shininess: 80}
	blue := core.Material{Diffuse: core.Color(0, 0.3, 0.8), Specular: mgl32.Vec4{1, 1, 1, 1}, Shininess: 80}

	s.Add(core.KindRay, "cube", core.Cube(), green, nil)
	s.Add(core.KindRay, "ground", core.Cube(), blue, nil).Node.
		SetPosition(mgl32.Vec3{0, -1.05, 0}).
		SetScale(mgl32.Vec3{20, 0.1, 20})

	point := core.NewLight(core.LightPoint, mgl32.Vec3{1, 1, 1}, 30)
	point.Position = mgl32.Vec3{-5, 3, 3}
	point.Attenuation = mgl32.Vec3{0, 0, 1}
	s.AddLight(point)

	sun := core.NewLight(core.LightInfinite, mgl32.Vec3{1, 1, 1}, 0.5)
	sun.Direction = mgl32.Vec3{0.6, 0.5, 0.6}.Normalize()
	s.AddLight(sun)
}

// Spin rotates the cone tracing cube about Y at degPerSec.
func (d *Demo) Spin(dt, degPerSec float32) {
	for _, dr := range d.Scene.Drawables {
		if dr.Name == "cube" && dr.Kind == core.KindVoxelized {
			dr.Node.RotateY(math32.Mod(degPerSec*dt, 360))
			return
		}
	}
}
