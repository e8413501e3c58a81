// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/devblok/orbiter/asset"
	"github.com/devblok/orbiter/core"
	"github.com/devblok/orbiter/device"
	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
	"github.com/devblok/orbiter/gfx/vkr"
	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
)

var (
	envFiles    = flag.String("env", "", "Comma separated dotenv files to load")
	backendName = flag.String("backend", "", "Rendering backend, headless or vulkan (overrides "+core.EnvBackend+")")
	deviceIndex = flag.Int("device", 0, "Physical device used by the vulkan backend")
	frames      = flag.Int("frames", 120, "Frames to animate after loading, 0 runs until interrupted")
	watch       = flag.Bool("watch", false, "Reload the scene when files under "+core.EnvAssets+" change")
	devices     = flag.Bool("devices", false, "Print the available vulkan devices and exit")
	list        = flag.Bool("list", false, "Print the available assets and exit")
)

// errEmbeddedGLSL is returned when the vulkan backend is asked to load the
// embedded scene, whose shaders are GLSL text.
var errEmbeddedGLSL = errors.New("embedded scene has GLSL shaders, vulkan needs SPIR-V assets from " +
	core.EnvAssets + ", " + core.EnvArchive + " or " + core.EnvBaseURL)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.WithError(err).Fatal("orbiter")
	}
}

func run() error {
	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		return err
	}
	if *backendName != "" {
		cfg.Renderer.Backend = *backendName
	}
	if err := core.SetupLogging(cfg.Log); err != nil {
		return err
	}

	if *devices {
		return printDevices(cfg.Renderer)
	}

	fetcher, closeFetcher, err := newFetcher(cfg.Assets)
	if err != nil {
		return err
	}
	defer closeFetcher()

	if *list {
		return printAssets(fetcher)
	}
	if err := checkBackend(cfg); err != nil {
		return err
	}

	backend, closeBackend, err := newBackend(cfg.Renderer)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	v := &viewer{
		cfg:      cfg,
		fetcher:  fetcher,
		backend:  backend,
		renderer: renderer(backend),
	}
	return v.Run(ctx, *frames, *watch)
}

func newFetcher(cfg core.AssetConfiguration) (asset.Fetcher, func(), error) {
	noop := func() {}
	switch {
	case cfg.Archive != "":
		ar, err := asset.OpenArchive(cfg.Archive)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("archive", cfg.Archive).Info("loading assets from archive")
		return ar, func() { ar.Close() }, nil
	case cfg.BaseURL != "":
		hf, err := asset.NewHTTPFetcher(cfg.BaseURL, cfg.FetchTimeout)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("url", cfg.BaseURL).Info("loading assets over http")
		return hf, noop, nil
	case cfg.Root != "":
		log.WithField("root", cfg.Root).Info("loading assets from directory")
		return asset.DirFetcher{Root: cfg.Root}, noop, nil
	default:
		log.Info("loading embedded assets")
		return asset.BoxFetcher{Box: packr.NewBox("./assets")}, noop, nil
	}
}

func embedded(cfg core.AssetConfiguration) bool {
	return cfg.Archive == "" && cfg.BaseURL == "" && cfg.Root == ""
}

// checkBackend refuses combinations of backend and asset source that
// cannot produce a single program.
func checkBackend(cfg core.Configuration) error {
	if cfg.Renderer.Backend == "vulkan" && embedded(cfg.Assets) {
		return errEmbeddedGLSL
	}
	return nil
}

func newBackend(cfg core.RendererConfiguration) (gfx.Backend, func(), error) {
	switch cfg.Backend {
	case "headless":
		return headless.New(), func() {}, nil
	case "vulkan":
		dev, err := device.NewVulkanDevice(device.VulkanConfiguration{
			DeviceIndex: *deviceIndex,
			Logical:     true,
			DebugMode:   cfg.DebugMode,
		})
		if err != nil {
			return nil, nil, err
		}
		return vkr.NewBackend(dev.Logical(), dev.Physical()), dev.Destroy, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// renderer returns the backend as a gfx.Renderer, or a renderer that only
// counts frames for backends that cannot draw on their own.
func renderer(b gfx.Backend) gfx.Renderer {
	if r, ok := b.(gfx.Renderer); ok {
		return r
	}
	return discard{}
}

type discard struct{}

func (discard) Draw(gfx.DrawCall) error { return nil }

func printDevices(cfg core.RendererConfiguration) error {
	dev, err := device.NewVulkanDevice(device.VulkanConfiguration{DebugMode: cfg.DebugMode})
	if err != nil {
		return err
	}
	defer dev.Destroy()
	for idx, info := range dev.PhysicalDevices() {
		fmt.Printf("%d: %s\n", idx, info)
	}
	return nil
}

func printAssets(f asset.Fetcher) error {
	lister, ok := f.(asset.Lister)
	if !ok {
		return fmt.Errorf("%T cannot list its assets", f)
	}
	names, err := lister.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
