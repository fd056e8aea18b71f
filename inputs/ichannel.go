package inputs

// Sampler describes how a texture is filtered and wrapped.
type Sampler struct {
	Filter string // "mipmap", "linear" or "nearest"
	Wrap   string // "clamp", "repeat" or "mirror"
	VFlip  bool
	SRGB   bool
}

// DefaultSampler matches what a WebGL texture loader applies to a plain
// image: mipmapped, clamped to edge, flipped so row zero is the bottom.
var DefaultSampler = Sampler{Filter: "mipmap", Wrap: "clamp", VFlip: true}

// Texture is a GPU texture bound to a sampler uniform.
type Texture interface {
	// GetTextureID returns the OpenGL texture ID that should be bound.
	GetTextureID() uint32

	// Resolution returns the texture's width and height in texels.
	Resolution() (int, int)

	// Destroy releases any resources held by the texture.
	Destroy()
}
