package metadata

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindNull
	// KindReference marks an input wired to another node's output,
	// encoded as a two-element [nodeId, outputIndex] array.
	KindReference
	// KindComposite holds any other array or object.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindReference:
		return "reference"
	default:
		return "composite"
	}
}

// Reference points at an output slot of another node in the same graph.
type Reference struct {
	NodeID string
	Output int64
}

// Value is a single node input. Only one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind
	// Text is the string payload for KindString and the raw JSON text
	// for KindNumber and KindComposite.
	Text string
	Num  float64
	Bool bool
	Ref  Reference
}

// IsReference reports whether v wires the input to another node's output.
func (v Value) IsReference() bool {
	return v.Kind == KindReference
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return ""
	case KindReference:
		return fmt.Sprintf("%s:%d", v.Ref.NodeID, v.Ref.Output)
	default:
		return v.Text
	}
}

// Int64 returns the value as an integer when it is a JSON number with an
// integral value that fits into int64.
func (v Value) Int64() (int64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	if n, err := strconv.ParseInt(v.Text, 10, 64); err == nil {
		return n, true
	}
	if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) || v.Num != math.Trunc(v.Num) {
		return 0, false
	}
	if v.Num < math.MinInt64 || v.Num >= math.MaxInt64 {
		return 0, false
	}
	return int64(v.Num), true
}

type Input struct {
	Name  string
	Value Value
}

// Node is one entry of the pipeline graph. Inputs keep their JSON order.
type Node struct {
	ID        string
	ClassType string
	Inputs    []Input
}

// Input returns the value stored under name.
func (n Node) Input(name string) (Value, bool) {
	for _, in := range n.Inputs {
		if in.Name == name {
			return in.Value, true
		}
	}
	return Value{}, false
}

// Graph is the decoded node graph of one image. Nodes are held in the
// order they appear in the embedded JSON document.
type Graph struct {
	Nodes []Node
	Raw   []byte
}

// DecodeGraph decodes an embedded node graph document. The document must be
// a JSON object; members that are not objects or carry no "inputs" object
// become nodes without inputs.
func DecodeGraph(raw []byte) (*Graph, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedMetadata)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedMetadata, root.Type)
	}

	graph := &Graph{
		Raw: append([]byte(nil), raw...),
	}

	root.ForEach(func(key, member gjson.Result) bool {
		node := Node{ID: key.String()}

		if member.IsObject() {
			if classType := member.Get("class_type"); classType.Type == gjson.String {
				node.ClassType = classType.Str
			}

			if inputs := member.Get("inputs"); inputs.IsObject() {
				inputs.ForEach(func(name, value gjson.Result) bool {
					node.Inputs = append(node.Inputs, Input{
						Name:  name.String(),
						Value: valueOf(value),
					})
					return true
				})
			}
		}

		graph.Nodes = append(graph.Nodes, node)
		return true
	})

	return graph, nil
}

func valueOf(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return Value{Kind: KindString, Text: r.Str}
	case gjson.Number:
		return Value{Kind: KindNumber, Text: r.Raw, Num: r.Num}
	case gjson.True:
		return Value{Kind: KindBool, Bool: true}
	case gjson.False:
		return Value{Kind: KindBool, Bool: false}
	case gjson.Null:
		return Value{Kind: KindNull}
	}

	if r.IsArray() {
		items := r.Array()
		if len(items) == 2 &&
			(items[0].Type == gjson.String || items[0].Type == gjson.Number) &&
			items[1].Type == gjson.Number {
			return Value{
				Kind: KindReference,
				Text: r.Raw,
				Ref:  Reference{NodeID: items[0].String(), Output: items[1].Int()},
			}
		}
	}

	return Value{Kind: KindComposite, Text: r.Raw}
}

// Parse reads the embedded generation metadata of an image. The "prompt"
// text field is preferred; "parameters" is used when it is absent.
func Parse(data []byte) (*Graph, error) {
	fields, err := ReadTextFields(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingMetadata, err)
	}

	raw, ok := fields["prompt"]
	if !ok {
		raw, ok = fields["parameters"]
	}
	if !ok {
		return nil, ErrMissingMetadata
	}

	return DecodeGraph([]byte(raw))
}
