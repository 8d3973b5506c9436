package vct

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

const (
	SceneConeTracing = "vct"
	SceneRaytracing  = "raytracing"
)

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type OctreeConfig struct {
	MinObjects int     `yaml:"min_objects"`
	MinSize    float32 `yaml:"min_size"`
}

type PhysicsConfig struct {
	Enabled        bool       `yaml:"enabled"`
	Gravity        [3]float32 `yaml:"gravity"`
	SleepThreshold float32    `yaml:"sleep_threshold"`
	SleepTime      float32    `yaml:"sleep_time"`
}

// Config is everything the engine reads at startup. Fields missing from a
// config file keep their defaults.
type Config struct {
	Window   WindowConfig    `yaml:"window"`
	Scene    string          `yaml:"scene"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Octree   OctreeConfig    `yaml:"octree"`
	Physics  PhysicsConfig   `yaml:"physics"`
	// CPU device workers, 0 means one per CPU.
	Workers int `yaml:"workers"`
	// Mirror bounces for the raytracing scene.
	ReflectionDepth int  `yaml:"reflection_depth"`
	Debug           bool `yaml:"debug"`
}

func DefaultConfig() Config {
	opts := octree.DefaultOptions()
	return Config{
		Window:   WindowConfig{Width: 800, Height: 600, Title: "vct"},
		Scene:    SceneConeTracing,
		Pipeline: pipeline.DefaultConfig(),
		Octree:   OctreeConfig{MinObjects: opts.MinObjects, MinSize: opts.MinSize},
		Physics: PhysicsConfig{
			Enabled:        true,
			Gravity:        [3]float32{0, -9.81, 0},
			SleepThreshold: 0.05,
			SleepTime:      1.0,
		},
		ReflectionDepth: 2,
	}
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	switch c.Scene {
	case SceneConeTracing, SceneBoxes, SceneRaytracing:
	default:
		return fmt.Errorf("unknown scene %q", c.Scene)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Octree.MinObjects < 1 {
		return fmt.Errorf("octree min objects %d must be at least 1", c.Octree.MinObjects)
	}
	if c.Octree.MinSize <= 0 {
		return fmt.Errorf("octree min size %g must be positive", c.Octree.MinSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d must not be negative", c.Workers)
	}
	if c.ReflectionDepth < 0 {
		return fmt.Errorf("reflection depth %d must not be negative", c.ReflectionDepth)
	}
	return nil
}

func (c Config) OctreeOptions() octree.Options {
	return octree.Options{MinObjects: c.Octree.MinObjects, MinSize: c.Octree.MinSize}
}

func (c Config) Gravity() mgl32.Vec3 {
	return mgl32.Vec3(c.Physics.Gravity)
}

// ParseConfig applies data over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads path. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// WatchConfig reloads path whenever it is written or recreated and passes
// every config that loads and validates to onChange. Bad edits are logged
// and skipped. It blocks until ctx is done.
func WatchConfig(ctx context.Context, path string, log Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files on save, so watch the directory
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				log.Warnf("config reload skipped: %v", err)
				continue
			}
			log.Infof("config reloaded from %s", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warnf("config watcher overflow")
				continue
			}
			log.Errorf("config watcher: %v", err)
		}
	}
}
