package options

type Options struct {
	Mode           *string // image pair key, e.g. "demo-2"
	AssetRoot      *string // directory or http(s) base URL holding the images
	VertexShader   *string
	FragmentShader *string
	Width          *int
	Height         *int
	Title          *string
	Help           *bool
	NoCache        *bool
	LoadTimeout    *float64 // seconds, 0 waits forever

	// Recording options
	Record     *bool
	Duration   *float64
	FPS        *int
	OutputFile *string
	FFMPEGPath *string
	Codec      *string
}
