package metadata

import (
	"strings"
)

const (
	modelSuffix = ".safetensors"
	loraPrefix  = "lora_name_"
)

// FindScalar returns the value of the first node, in decode order, whose
// inputs hold name as a literal of any kind, composites included. Nodes
// where name is wired to another node are skipped.
//
// Decode order follows the producing tool's output and may differ between
// tool versions, so callers must not rely on which of several matching
// nodes wins.
func (g *Graph) FindScalar(name string) (Value, bool) {
	if g == nil {
		return Value{}, false
	}

	for _, node := range g.Nodes {
		value, ok := node.Input(name)
		if !ok || value.IsReference() {
			continue
		}
		return value, true
	}
	return Value{}, false
}

// Seed looks up "seed", falling back to "noise_seed" only when no node
// provides a literal seed at all.
func (g *Graph) Seed() (Value, bool) {
	if v, ok := g.FindScalar("seed"); ok {
		return v, true
	}
	return g.FindScalar("noise_seed")
}

func (g *Graph) Steps() (Value, bool) {
	return g.FindScalar("steps")
}

func (g *Graph) PositivePrompt() (Value, bool) {
	return g.FindScalar("positive")
}

func (g *Graph) NegativePrompt() (Value, bool) {
	return g.FindScalar("negative")
}

// Checkpoint returns the base model name with its path and extension removed.
func (g *Graph) Checkpoint() (string, bool) {
	v, ok := g.FindScalar("base_ckpt_name")
	if !ok || v.Kind == KindNull || v.Kind == KindComposite {
		return "", false
	}
	return StripModelName(v.String()), true
}

// RequireCheckpoint is Checkpoint for callers that cannot proceed without one.
func (g *Graph) RequireCheckpoint() (string, error) {
	v, ok := g.FindScalar("base_ckpt_name")
	if !ok || v.Kind != KindString {
		return "", ErrCheckpointFormat
	}
	return StripModelName(v.Text), nil
}

// LoraList collects every string input named lora_name_* across all nodes,
// in decode order. Empty slots and the "None" placeholder are left out.
func (g *Graph) LoraList() []string {
	if g == nil {
		return nil
	}

	var loras []string
	for _, node := range g.Nodes {
		for _, in := range node.Inputs {
			if !strings.HasPrefix(in.Name, loraPrefix) || in.Value.Kind != KindString {
				continue
			}

			name := strings.TrimSpace(StripModelName(in.Value.Text))
			if name == "" || name == "None" {
				continue
			}
			loras = append(loras, name)
		}
	}
	return loras
}

// Loras returns LoraList joined with commas.
func (g *Graph) Loras() (string, bool) {
	loras := g.LoraList()
	if len(loras) == 0 {
		return "", false
	}
	return strings.Join(loras, ","), true
}

// StripModelName keeps the last "/"-separated segment of a model path and
// drops a trailing ".safetensors".
func StripModelName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, modelSuffix)
}
