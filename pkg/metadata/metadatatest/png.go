// Package metadatatest builds PNG fixtures carrying generation metadata.
package metadatatest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// Chunk describes a text chunk to embed. Compressed selects zTXt, or a
// compressed iTXt when International is also set.
type Chunk struct {
	Keyword       string
	Text          string
	Compressed    bool
	International bool
}

func Text(keyword, text string) Chunk {
	return Chunk{Keyword: keyword, Text: text}
}

// PNG encodes a 1x1 image and inserts the given chunks right after IHDR.
func PNG(tb testing.TB, chunks ...Chunk) []byte {
	tb.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("failed to encode png fixture: %v", err)
	}
	encoded := buf.Bytes()

	// 8 byte signature followed by the 25 byte IHDR chunk
	const headerLen = 8 + 25

	out := bytes.NewBuffer(nil)
	out.Write(encoded[:headerLen])
	for _, c := range chunks {
		writeChunk(tb, out, c)
	}
	out.Write(encoded[headerLen:])
	return out.Bytes()
}

func writeChunk(tb testing.TB, out *bytes.Buffer, c Chunk) {
	tb.Helper()

	var (
		kind string
		body bytes.Buffer
	)
	body.WriteString(c.Keyword)
	body.WriteByte(0)

	switch {
	case c.International:
		kind = "iTXt"
		if c.Compressed {
			body.Write([]byte{1, 0})
		} else {
			body.Write([]byte{0, 0})
		}
		body.WriteByte(0) // empty language tag
		body.WriteByte(0) // empty translated keyword
		if c.Compressed {
			body.Write(deflate(tb, c.Text))
		} else {
			body.WriteString(c.Text)
		}
	case c.Compressed:
		kind = "zTXt"
		body.WriteByte(0)
		body.Write(deflate(tb, c.Text))
	default:
		kind = "tEXt"
		body.WriteString(c.Text)
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(body.Len()))
	copy(header[4:], kind)

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(body.Bytes())

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())

	out.Write(header[:])
	out.Write(body.Bytes())
	out.Write(sum[:])
}

func deflate(tb testing.TB, text string) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		tb.Fatalf("failed to compress chunk: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("failed to compress chunk: %v", err)
	}
	return buf.Bytes()
}

// ComfyGraph is a small pipeline graph in the layout produced by the
// generation tool, used across package tests.
const ComfyGraph = `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 1234, "steps": 30, "positive": ["6", 0], "negative": ["7", 0], "model": ["4", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"base_ckpt_name": "sdxl/juggernaut_v9.safetensors"}},
  "6": {"class_type": "PromptText", "inputs": {"positive": "a lighthouse at dusk, oil painting"}},
  "7": {"class_type": "PromptText", "inputs": {"negative": "blurry, lowres"}},
  "10": {"class_type": "LoraStack", "inputs": {"lora_name_1": "styles/impasto.safetensors", "lora_name_2": "detail.safetensors", "lora_name_3": "None"}}
}`
