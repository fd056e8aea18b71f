package renderer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"runtime"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gotransition/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Frame represents a single rendered frame's data, ready for encoding.
type Frame struct {
	Pixels []byte
	PTS    int64
}

// Stepper advances a host by one frame and feeds it synthetic pointer
// input. *glfwcontext.Context satisfies it.
type Stepper interface {
	Tick(timestamp float64) int
	DispatchPointer(x, y float64)
}

const numBuffers = 3

// OffscreenRenderer is an RGBA8 framebuffer. Recording draws every frame
// into one; GLDevice uses one to stretch a clamped drawing buffer.
type OffscreenRenderer struct {
	fbo               uint32
	textureID         uint32
	depthRenderbuffer uint32
	width             int
	height            int
	pixels            []byte
}

func NewOffscreenRenderer(width, height int) (*OffscreenRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid offscreen size %dx%d", width, height)
	}
	or := &OffscreenRenderer{
		width:  width,
		height: height,
	}

	gl.GenFramebuffers(1, &or.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, or.fbo)
	gl.GenTextures(1, &or.textureID)
	gl.BindTexture(gl.TEXTURE_2D, or.textureID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, or.textureID, 0)
	gl.GenRenderbuffers(1, &or.depthRenderbuffer)
	gl.BindRenderbuffer(gl.RENDERBUFFER, or.depthRenderbuffer)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, or.depthRenderbuffer)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		or.Destroy()
		return nil, fmt.Errorf("offscreen fbo is not complete: 0x%x", status)
	}
	return or, nil
}

func (or *OffscreenRenderer) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, or.fbo)
}

func (or *OffscreenRenderer) Unbind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// ReadPixels returns a copy of the framebuffer, bottom row first.
func (or *OffscreenRenderer) ReadPixels() []byte {
	if or.pixels == nil {
		or.pixels = make([]byte, or.width*or.height*4)
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, or.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(or.width), int32(or.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&or.pixels[0]))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	out := make([]byte, len(or.pixels))
	copy(out, or.pixels)
	return out
}

func (or *OffscreenRenderer) Destroy() {
	if or.fbo != 0 {
		gl.DeleteFramebuffers(1, &or.fbo)
		or.fbo = 0
	}
	if or.textureID != 0 {
		gl.DeleteTextures(1, &or.textureID)
		or.textureID = 0
	}
	if or.depthRenderbuffer != 0 {
		gl.DeleteRenderbuffers(1, &or.depthRenderbuffer)
		or.depthRenderbuffer = 0
	}
}

// PointerPath is the scripted pointer used while recording: a Lissajous
// sweep over the middle 80% of the viewport, starting at the center.
func PointerPath(seconds float64) (x, y float64) {
	x = 0.5 + 0.4*math.Sin(2*math.Pi*0.2*seconds)
	y = 0.5 + 0.4*math.Sin(2*math.Pi*0.3*seconds)
	return x, y
}

func codecFor(codec, goos string) string {
	hevc := codec == "hevc"
	switch goos {
	case "darwin":
		if hevc {
			return "hevc_videotoolbox"
		}
		return "h264_videotoolbox"
	default:
		if hevc {
			return "libx265"
		}
		return "libx264"
	}
}

func getArgs(opts *options.Options, goos string) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", *opts.Width, *opts.Height),
		"framerate": fmt.Sprintf("%d", *opts.FPS),
	}

	codec := ""
	if opts.Codec != nil {
		codec = *opts.Codec
	}
	outputArgs = ffmpeg.KwArgs{
		// GL rows are bottom-up
		"vf":      "vflip",
		"c:v":     codecFor(codec, goos),
		"pix_fmt": "yuv420p",
		"b:v":     "8M",
	}
	if codec == "hevc" && strings.HasSuffix(*opts.OutputFile, ".mp4") {
		outputArgs["tag:v"] = "hvc1"
	}
	return inputArgs, outputArgs
}

// writeFrames copies every frame to w until frames is closed. After a write
// error the remaining frames are drained so the producer never blocks.
func writeFrames(w io.Writer, frames <-chan *Frame, frameSize int) error {
	var werr error
	for frame := range frames {
		if werr != nil {
			continue
		}
		if len(frame.Pixels) != frameSize {
			werr = fmt.Errorf("frame %d has %d bytes, want %d", frame.PTS, len(frame.Pixels), frameSize)
			continue
		}
		if _, err := w.Write(frame.Pixels); err != nil {
			werr = fmt.Errorf("failed to write frame %d to FFmpeg: %w", frame.PTS, err)
		}
	}
	return werr
}

// runEncoder is the consumer. It starts FFmpeg and feeds it frames from
// frameChan as raw RGBA video.
func runEncoder(opts *options.Options, frameChan <-chan *Frame, doneChan chan<- error) {
	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := getArgs(opts, runtime.GOOS)

	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(*opts.OutputFile, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()

	if opts.FFMPEGPath != nil && *opts.FFMPEGPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(*opts.FFMPEGPath)
	}

	errc := make(chan error, 1)
	go func() {
		err := ffmpegCmd.Run()
		// unblock the writer if ffmpeg exits early
		pipeReader.CloseWithError(errors.New("ffmpeg exited"))
		errc <- err
	}()

	werr := writeFrames(pipeWriter, frameChan, *opts.Width**opts.Height*4)
	pipeWriter.Close()
	if err := <-errc; err != nil {
		doneChan <- fmt.Errorf("ffmpeg failed: %w", err)
		return
	}
	doneChan <- werr
}

// RunOffscreen is the producer. It steps host at a fixed frame rate for the
// configured duration, moving the pointer along PointerPath, and records
// every frame into the output file.
func RunOffscreen(host Stepper, opts *options.Options) error {
	width, height := *opts.Width, *opts.Height
	if *opts.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", *opts.FPS)
	}

	or, err := NewOffscreenRenderer(width, height)
	if err != nil {
		return err
	}
	defer or.Destroy()

	log.Printf("Recording %.2fs at %d fps to %s", *opts.Duration, *opts.FPS, *opts.OutputFile)
	frameChan := make(chan *Frame, numBuffers)
	encoderDoneChan := make(chan error, 1)
	go runEncoder(opts, frameChan, encoderDoneChan)

	totalFrames := int(*opts.Duration * float64(*opts.FPS))
	timeStep := 1.0 / float64(*opts.FPS)

	for i := 0; i < totalFrames; i++ {
		currentTime := float64(i) * timeStep
		px, py := PointerPath(currentTime)
		host.DispatchPointer(px*float64(width), (1-py)*float64(height))

		or.Bind()
		host.Tick(currentTime * 1000)
		pixels := or.ReadPixels()
		or.Unbind()

		select {
		case frameChan <- &Frame{Pixels: pixels, PTS: int64(i)}:
		case err := <-encoderDoneChan:
			close(frameChan)
			if err == nil {
				err = fmt.Errorf("encoder stopped after %d of %d frames", i, totalFrames)
			}
			return err
		}
		if i > 0 && i%(*opts.FPS) == 0 {
			log.Printf("Rendered %d/%d frames", i, totalFrames)
		}
	}

	close(frameChan)
	if err := <-encoderDoneChan; err != nil {
		return err
	}
	log.Printf("Recorded %d frames to %s", totalFrames, *opts.OutputFile)
	return nil
}
