package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	translator *gst.ShaderTranslator
	initOnce   sync.Once
	initErr    error
)

// GetTranslator returns the process wide shader translator, creating it on
// first use.
func GetTranslator() (*gst.ShaderTranslator, error) {
	initOnce.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
	})
	return translator, initErr
}

// Translated is desktop GLSL plus the table mapping source identifiers to
// the names the translator emitted for them.
type Translated struct {
	Code  string
	Names map[string]string
}

// Translate converts WebGL 2 shader source for stage ("vertex" or
// "fragment") into GLSL 4.10 core.
func Translate(source, stage string) (*Translated, error) {
	t, err := GetTranslator()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader translator: %w", err)
	}
	out, err := t.TranslateShader(source, stage, gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, fmt.Errorf("%s shader translation failed: %w", stage, err)
	}
	names := make(map[string]string, len(out.Variables))
	for name, v := range out.Variables {
		names[name] = v.MappedName
	}
	return &Translated{Code: out.Code, Names: names}, nil
}

// Lookup returns the translated name for a source identifier, or the
// identifier itself when the translator kept it.
func (t *Translated) Lookup(name string) string {
	if mapped, ok := t.Names[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
