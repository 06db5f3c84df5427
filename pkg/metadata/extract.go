package metadata

import "fmt"

// Bundle is the set of catalog fields recovered from an image. Every field
// is optional.
type Bundle struct {
	PositivePrompt *string
	NegativePrompt *string
	Seed           *int64
	Steps          *int64
	Checkpoint     *string
	Loras          *string

	// Raw is the embedded graph document as found in the image.
	Raw []byte
	// Warnings lists values that were present but could not be used.
	Warnings []string
}

// Empty reports whether no field could be resolved.
func (b Bundle) Empty() bool {
	return b.PositivePrompt == nil && b.NegativePrompt == nil &&
		b.Seed == nil && b.Steps == nil &&
		b.Checkpoint == nil && b.Loras == nil
}

// Extract parses the image and resolves every known parameter. On failure
// the returned bundle is empty and the error wraps ErrMissingMetadata or
// ErrMalformedMetadata.
func Extract(data []byte) (Bundle, error) {
	graph, err := Parse(data)
	if err != nil {
		return Bundle{}, err
	}
	return Resolve(graph), nil
}

// Resolve builds a bundle from an already decoded graph.
func Resolve(g *Graph) Bundle {
	b := Bundle{}
	if g == nil {
		return b
	}
	b.Raw = g.Raw

	if v, ok := g.PositivePrompt(); ok {
		b.PositivePrompt = textOf(v)
	}
	if v, ok := g.NegativePrompt(); ok {
		b.NegativePrompt = textOf(v)
	}
	if v, ok := g.Seed(); ok {
		b.Seed = b.integer("seed", v)
	}
	if v, ok := g.Steps(); ok {
		b.Steps = b.integer("steps", v)
	}
	if name, ok := g.Checkpoint(); ok && name != "" {
		b.Checkpoint = &name
	}
	if loras, ok := g.Loras(); ok {
		b.Loras = &loras
	}

	return b
}

func (b *Bundle) integer(name string, v Value) *int64 {
	if v.Kind == KindNull {
		return nil
	}
	n, ok := v.Int64()
	if !ok {
		b.Warnings = append(b.Warnings, fmt.Sprintf("%s: %s value %q is not an integer", name, v.Kind, v.String()))
		return nil
	}
	return &n
}

func textOf(v Value) *string {
	if v.Kind == KindNull {
		return nil
	}
	s := v.String()
	return &s
}
