package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/gekko3d/vct"
	"github.com/gekko3d/vct/voxelrt/rt/octree"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/image/draw"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "vct"
	app.Usage = "voxel cone tracing and octree ray tracing demos"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML config file; defaults are used for anything it leaves out",
		},
		cli.StringFlag{
			Name:  "scene, s",
			Usage: "override the scene: vct, boxes or raytracing",
		},
	}
	sizeFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Usage: "frame width, 0 keeps the configured one",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "frame height, 0 keeps the configured one",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "open an interactive window rendered with WebGPU",
			Action: runInteractive,
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  "cpu",
					Usage: "render on the CPU pipeline and upload every frame",
				},
				cli.Float64Flag{
					Name:  "spin",
					Usage: "turn the cube at this many degrees per second",
				},
				cli.BoolFlag{
					Name:  "watch",
					Usage: "reload the config file when it changes",
				},
			}, sizeFlags...),
		},
		{
			Name:  "render",
			Usage: "render a single frame on the CPU and save it as PNG",
			Description: `
Steps the scene the given number of frames, then renders the last one with the
cone tracing pipeline, or the ray tracer for the raytracing scene.`,
			Action: renderFrame,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 1,
					Usage: "engine frames to run before saving",
				},
				cli.IntFlag{
					Name:  "upscale",
					Value: 1,
					Usage: "scale the saved image up by this factor",
				},
				cli.BoolFlag{
					Name:  "stats",
					Usage: "print stage timings",
				},
			}, sizeFlags...),
		},
		{
			Name:   "octree",
			Usage:  "build the scene octree and print its statistics",
			Action: printOctree,
		},
		{
			Name:  "voxels",
			Usage: "voxelize the scene and save one volume texture level as PNG",
			Description: `
Textures are albedo, normal, emission, radiance, or one of the directional
volumes +x, -x, +y, -y, +z, -z.`,
			Action: renderVoxels,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "texture, t",
					Value: "radiance",
					Usage: "volume texture to show",
				},
				cli.IntFlag{
					Name:  "level, l",
					Usage: "mip level to show",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "voxels.png",
					Usage: "image filename",
				},
			}, sizeFlags...),
		},
	}
	return app
}

func newLogger(ctx *cli.Context) vct.Logger {
	return vct.NewDefaultLogger("vct", ctx.GlobalBool("v"))
}

// loadConfig reads the global config file and applies command line overrides.
func loadConfig(ctx *cli.Context) (vct.Config, error) {
	cfg, err := vct.LoadConfig(ctx.GlobalString("config"))
	if err != nil {
		return cfg, err
	}
	if s := ctx.GlobalString("scene"); s != "" {
		cfg.Scene = s
	}
	if w := ctx.Int("width"); w > 0 {
		cfg.Window.Width = w
	}
	if h := ctx.Int("height"); h > 0 {
		cfg.Window.Height = h
	}
	if ctx.GlobalBool("v") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newEngine(ctx *cli.Context) (*vct.Engine, vct.Logger, error) {
	log := newLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, log, err
	}
	e, err := vct.NewEngine(cfg, log)
	return e, log, err
}

func renderFrame(ctx *cli.Context) error {
	e, log, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	frames := ctx.Int("frames")
	if frames < 1 {
		return errors.New("frames must be at least 1")
	}
	var res vct.FrameResult
	for i := 0; i < frames; i++ {
		// fixed 60 Hz steps so the output does not depend on render time
		res = e.Frame(1.0 / 60)
	}
	if ctx.Bool("stats") {
		displayFrameStats(ctx.App.Writer, res)
	}

	img := upscale(res.Image.Image(), ctx.Int("upscale"))
	if err := savePNG(ctx.String("out"), img); err != nil {
		return err
	}
	log.Infof("wrote %s (%dx%d)", ctx.String("out"), img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}

func printOctree(ctx *cli.Context) error {
	e, _, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	e.Step(0)

	scene := e.Demo.Scene
	if scene.Octree == nil {
		return errors.New("scene has no traced drawables")
	}
	displayOctreeStats(ctx.App.Writer, scene.Octree.Stats(), len(scene.Primitives))
	return nil
}

func renderVoxels(ctx *cli.Context) error {
	e, log, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	e.Step(0)

	r := e.Renderer
	r.VoxelizeOnly(e.Demo.Scene)
	tex, err := r.VoxelTexture(ctx.String("texture"))
	if err != nil {
		return err
	}
	level := ctx.Int("level")
	if level < 0 || level >= tex.Levels() {
		return fmt.Errorf("level %d outside %d levels of %s", level, tex.Levels(), tex.Label)
	}
	img := r.VisualizeVoxels(e.Demo.Camera, tex, level).Image()
	if err := savePNG(ctx.String("out"), img); err != nil {
		return err
	}
	log.Infof("wrote %s level %d to %s", tex.Label, level, ctx.String("out"))
	return nil
}

func upscale(img *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func displayFrameStats(w io.Writer, res vct.FrameResult) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stage", "Time (ms)"})
	for _, s := range res.Stats.Stages {
		table.Append([]string{s.Name, fmt.Sprintf("%.2f", float64(s.Duration.Microseconds())/1000)})
	}
	if res.Stats.Voxelized > 0 {
		table.SetFooter([]string{"voxelized triangles", fmt.Sprint(res.Stats.Voxelized)})
	}
	table.Render()
}

func displayOctreeStats(w io.Writer, s octree.Stats, prims int) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Primitives", fmt.Sprint(prims)})
	table.Append([]string{"Nodes", fmt.Sprint(s.Nodes)})
	table.Append([]string{"Active nodes", fmt.Sprint(s.ActiveNodes)})
	table.Append([]string{"Leaves", fmt.Sprint(s.Leaves)})
	table.Append([]string{"Max depth", fmt.Sprint(s.MaxDepth)})
	table.Append([]string{"Max node fill", fmt.Sprint(s.MaxLeafFill)})
	table.Append([]string{"Smallest node", fmt.Sprintf("%.4f", s.SmallestBox)})
	per := make([]string, len(s.PerDepth))
	for i, n := range s.PerDepth {
		per[i] = fmt.Sprint(n)
	}
	table.Append([]string{"Primitives per depth", strings.Join(per, " ")})
	table.Render()
}
