package inputs

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"golang.org/x/image/draw"
)

// ImageTexture is a static image uploaded as a 2D texture.
type ImageTexture struct {
	textureID uint32
	width     int
	height    int
	sampler   Sampler
}

// vflip vertically flips the provided RGBA image.
func vflip(src *image.RGBA) *image.RGBA {
	bounds := src.Bounds()
	flipped := image.NewRGBA(bounds)
	height := bounds.Dy()

	rowSize := bounds.Dx() * 4
	for y := 0; y < height; y++ {
		srcRow := src.Pix[((height-1)-y)*src.Stride:]
		dstRow := flipped.Pix[y*flipped.Stride:]
		copy(dstRow, srcRow[:rowSize])
	}
	return flipped
}

// toRGBA converts img to a tightly packed RGBA image with origin (0,0),
// applying the sampler's vertical flip.
func toRGBA(img image.Image, flip bool) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	if flip {
		rgba = vflip(rgba)
	}
	return rgba
}

// NewImageTexture uploads img to a new OpenGL texture.
func NewImageTexture(img image.Image, sampler Sampler) (*ImageTexture, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	rgba := toRGBA(img, sampler.VFlip)

	width := int32(rgba.Rect.Size().X)
	height := int32(rgba.Rect.Size().Y)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("input image is empty")
	}

	var textureID uint32
	gl.GenTextures(1, &textureID)
	gl.BindTexture(gl.TEXTURE_2D, textureID)

	var internalFormat int32 = gl.RGBA8
	if sampler.SRGB {
		// The GPU linearizes colors when sampled.
		internalFormat = gl.SRGB8_ALPHA8
	}

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, getWrapMode(sampler.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, getWrapMode(sampler.Wrap))

	minFilter, magFilter, mipmaps := getFilterMode(sampler.Filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		internalFormat,
		width,
		height,
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(rgba.Pix),
	)

	if mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}

	gl.BindTexture(gl.TEXTURE_2D, 0)

	return &ImageTexture{
		textureID: textureID,
		width:     int(width),
		height:    int(height),
		sampler:   sampler,
	}, nil
}

func (t *ImageTexture) GetTextureID() uint32 {
	return t.textureID
}

func (t *ImageTexture) Resolution() (int, int) {
	return t.width, t.height
}

func (t *ImageTexture) Destroy() {
	if t.textureID == 0 {
		return
	}
	gl.DeleteTextures(1, &t.textureID)
	t.textureID = 0
}
