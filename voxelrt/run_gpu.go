//go:build !nogpu

package main

import (
	"context"

	"github.com/gekko3d/vct"
	"github.com/gekko3d/vct/voxelrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/urfave/cli"
)

func runInteractive(ctx *cli.Context) error {
	log := newLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	e, err := vct.NewEngine(cfg, log)
	if err != nil {
		return err
	}
	defer e.Close()

	if path := ctx.GlobalString("config"); ctx.Bool("watch") && path != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := vct.WatchConfig(watchCtx, path, log, e.ApplyConfig); err != nil {
				log.Errorf("config watcher stopped: %v", err)
			}
		}()
	}

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	application := app.NewApp(window, e, log)
	application.CPU = ctx.Bool("cpu")
	application.SpinSpeed = float32(ctx.Float64("spin"))
	if err := application.Init(); err != nil {
		return err
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		application.HandleCursor(xpos, ypos)
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		application.HandleButton(button, action)
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		application.HandleScroll(yoff)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		application.HandleKey(key, action)
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
	return nil
}
