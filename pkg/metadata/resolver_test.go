package metadata

import (
	"testing"

	"github.com/mwantia/promptgallery/pkg/metadata/metadatatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) *Graph {
	t.Helper()
	graph, err := DecodeGraph([]byte(raw))
	require.NoError(t, err)
	return graph
}

func TestFindScalarSkipsReferences(t *testing.T) {
	graph := decode(t, metadatatest.ComfyGraph)

	v, ok := graph.FindScalar("positive")
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "a lighthouse at dusk, oil painting", v.Text)

	_, ok = graph.FindScalar("model")
	assert.False(t, ok)

	_, ok = graph.FindScalar("cfg")
	assert.False(t, ok)
}

func TestFindScalarReturnsCompositeLiterals(t *testing.T) {
	graph := decode(t, `{
		"1": {"inputs": {"size": ["2", 0]}},
		"2": {"inputs": {"size": [512, 768, 1]}},
		"3": {"inputs": {"size": 1024}}
	}`)

	v, ok := graph.FindScalar("size")
	require.True(t, ok)
	assert.Equal(t, KindComposite, v.Kind)
	assert.JSONEq(t, `[512, 768, 1]`, v.Text)

	graph = decode(t, `{"1": {"inputs": {"base_ckpt_name": {"path": "a/b.safetensors"}}}}`)
	_, ok = graph.Checkpoint()
	assert.False(t, ok)
}

func TestFindScalarOnNilGraph(t *testing.T) {
	var graph *Graph
	_, ok := graph.FindScalar("seed")
	assert.False(t, ok)
	assert.Nil(t, graph.LoraList())
}

func TestSeedFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
		ok   bool
	}{
		{name: "seed", raw: `{"1":{"inputs":{"seed":42}}}`, want: 42, ok: true},
		{name: "noise seed", raw: `{"1":{"inputs":{"noise_seed":77}}}`, want: 77, ok: true},
		{name: "seed wins over noise seed", raw: `{"1":{"inputs":{"noise_seed":77}},"2":{"inputs":{"seed":5}}}`, want: 5, ok: true},
		{name: "zero seed is kept", raw: `{"1":{"inputs":{"seed":0,"noise_seed":9}}}`, want: 0, ok: true},
		{name: "wired seed falls back", raw: `{"1":{"inputs":{"seed":["2",0]}},"2":{"inputs":{"noise_seed":11}}}`, want: 11, ok: true},
		{name: "absent", raw: `{"1":{"inputs":{"steps":20}}}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := decode(t, tt.raw).Seed()
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			n, isInt := v.Int64()
			require.True(t, isInt)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCheckpoint(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "nested path", raw: `{"1":{"inputs":{"base_ckpt_name":"loras/foo/bar.safetensors"}}}`, want: "bar", ok: true},
		{name: "plain name", raw: `{"1":{"inputs":{"base_ckpt_name":"model.safetensors"}}}`, want: "model", ok: true},
		{name: "other extension", raw: `{"1":{"inputs":{"base_ckpt_name":"dir/model.ckpt"}}}`, want: "model.ckpt", ok: true},
		{name: "null", raw: `{"1":{"inputs":{"base_ckpt_name":null}}}`, ok: false},
		{name: "absent", raw: `{"1":{"inputs":{}}}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decode(t, tt.raw).Checkpoint()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireCheckpoint(t *testing.T) {
	got, err := decode(t, metadatatest.ComfyGraph).RequireCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, "juggernaut_v9", got)

	_, err = decode(t, `{"1":{"inputs":{"base_ckpt_name":12}}}`).RequireCheckpoint()
	assert.ErrorIs(t, err, ErrCheckpointFormat)

	_, err = decode(t, `{"1":{"inputs":{}}}`).RequireCheckpoint()
	assert.ErrorIs(t, err, ErrCheckpointFormat)
}

func TestLoras(t *testing.T) {
	t.Run("joined across nodes", func(t *testing.T) {
		graph := decode(t, `{"1":{"inputs":{"lora_name_1":"a.safetensors"}},"2":{"inputs":{"lora_name_1":"x/b.safetensors","strength":1}}}`)
		got, ok := graph.Loras()
		require.True(t, ok)
		assert.Equal(t, "a,b", got)
	})

	t.Run("placeholders skipped", func(t *testing.T) {
		got, ok := decode(t, metadatatest.ComfyGraph).Loras()
		require.True(t, ok)
		assert.Equal(t, "impasto,detail", got)
	})

	t.Run("non string ignored", func(t *testing.T) {
		_, ok := decode(t, `{"1":{"inputs":{"lora_name_1":["3",0],"lora_name_2":"","lora_name_3":"None"}}}`).Loras()
		assert.False(t, ok)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := decode(t, `{"1":{"inputs":{"lora":"a.safetensors"}}}`).Loras()
		assert.False(t, ok)
	})
}

func TestStripModelName(t *testing.T) {
	assert.Equal(t, "bar", StripModelName("loras/foo/bar.safetensors"))
	assert.Equal(t, "bar", StripModelName("bar"))
	assert.Equal(t, "", StripModelName("dir/"))
	assert.Equal(t, `c:\models\x`, StripModelName(`c:\models\x.safetensors`))
}
