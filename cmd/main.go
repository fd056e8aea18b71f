package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/richinsley/gotransition/assets"
	"github.com/richinsley/gotransition/glfwcontext"
	"github.com/richinsley/gotransition/options"
	"github.com/richinsley/gotransition/page"
	"github.com/richinsley/gotransition/renderer"
	"github.com/richinsley/gotransition/shader"
)

func init() {
	runtime.LockOSThread()
}

func parseOptions() *options.Options {
	opts := &options.Options{
		Mode:           flag.String("mode", "", "Image pair to show (demo-1 .. demo-4); falls back to TRANSITION_MODE, then "+defaultMode),
		AssetRoot:      flag.String("assets", "images", "Directory or http(s) base URL holding the pair's images (lady.jpg, lady-map.jpg, ball.jpg, ...)"),
		VertexShader:   flag.String("vertex", "", "Path to a vertex shader (default: built-in)"),
		FragmentShader: flag.String("fragment", "", "Path to a fragment shader (default: built-in)"),
		Width:          flag.Int("width", 1280, "Width of the window or recording"),
		Height:         flag.Int("height", 720, "Height of the window or recording"),
		Title:          flag.String("title", "gotransition", "Window title"),
		Help:           flag.Bool("help", false, "Show help message"),
		NoCache:        flag.Bool("no-cache", false, "Do not cache remote images on disk"),
		LoadTimeout:    flag.Float64("load-timeout", 0, "Texture load timeout in seconds (0 waits forever)"),

		Record:     flag.Bool("record", false, "Record to a video file instead of opening a window"),
		Duration:   flag.Float64("duration", 10.0, "Duration to record in seconds"),
		FPS:        flag.Int("fps", 60, "Frames per second for recording"),
		OutputFile: flag.String("output", "output.mp4", "Output file name for recording"),
		FFMPEGPath: flag.String("ffmpeg", "", "Path to ffmpeg executable"),
		Codec:      flag.String("codec", "h264", "Video codec for recording (h264, hevc)"),
	}
	flag.Parse()

	*opts.Mode = resolveMode(*opts.Mode, os.Getenv("TRANSITION_MODE"))
	return opts
}

const defaultMode = "demo-1"

// resolveMode picks the flag, then the environment, then the first demo.
func resolveMode(flagMode, envMode string) string {
	if flagMode != "" {
		return flagMode
	}
	if envMode != "" {
		return envMode
	}
	return defaultMode
}

func run(opts *options.Options) error {
	pair, err := assets.Lookup(*opts.Mode)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, assets.Modes())
	}
	source, err := shader.LoadSource(*opts.VertexShader, *opts.FragmentShader)
	if err != nil {
		return err
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return err
	}
	defer glfwcontext.TerminateGraphics()

	ctx, err := glfwcontext.New(opts, !*opts.Record)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer ctx.Shutdown()
	ctx.MakeCurrent()

	device, err := renderer.NewGLDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	surfaceOpts := renderer.Options{
		LoadTimeout: time.Duration(*opts.LoadTimeout * float64(time.Second)),
	}
	if *opts.Record {
		// the recording is exactly width x height
		surfaceOpts.PixelRatioLimit = 1
	}

	loader := assets.NewLoader(*opts.AssetRoot, !*opts.NoCache)
	surface := renderer.NewSurface(ctx, device, source, pair, loader, surfaceOpts)

	if *opts.Record {
		if err := surface.Wait(context.Background()); err != nil {
			surface.Destroy()
			return err
		}
	}

	p := page.New(ctx, surface)
	defer p.Destroy()

	if *opts.Record {
		if err := renderer.RunOffscreen(ctx, opts); err != nil {
			return fmt.Errorf("offscreen rendering failed: %w", err)
		}
		log.Printf("Successfully rendered to %s", *opts.OutputFile)
		return nil
	}

	log.Println("Starting interactive render loop...")
	ctx.Run()
	return nil
}

func main() {
	opts := parseOptions()
	if *opts.Help {
		fmt.Println("Image Displacement Transition Viewer/Recorder")
		fmt.Println()
		fmt.Println("Each mode shows an image and its depth map, looked up by file name under -assets:")
		for _, name := range assets.Modes() {
			p, _ := assets.Lookup(name)
			fmt.Printf("  %s: %s, %s\n", p.Mode, p.First, p.Second)
		}
		fmt.Println()
		flag.PrintDefaults()
		return
	}

	if err := run(opts); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
