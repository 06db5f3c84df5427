package metadata

import (
	"testing"

	"github.com/mwantia/promptgallery/pkg/metadata/metadatatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTextFields(t *testing.T) {
	data := metadatatest.PNG(t,
		metadatatest.Text("prompt", `{"1":{}}`),
		metadatatest.Chunk{Keyword: "workflow", Text: "compressed body", Compressed: true},
		metadatatest.Chunk{Keyword: "comment", Text: "héllo wörld", International: true},
		metadatatest.Chunk{Keyword: "notes", Text: "zipped unicode ✓", International: true, Compressed: true},
	)

	fields, err := ReadTextFields(data)
	require.NoError(t, err)

	assert.Equal(t, `{"1":{}}`, fields["prompt"])
	assert.Equal(t, "compressed body", fields["workflow"])
	assert.Equal(t, "héllo wörld", fields["comment"])
	assert.Equal(t, "zipped unicode ✓", fields["notes"])
}

func TestReadTextFieldsLatin1(t *testing.T) {
	data := metadatatest.PNG(t, metadatatest.Text("title", "caf\xe9"))

	fields, err := ReadTextFields(data)
	require.NoError(t, err)
	assert.Equal(t, "café", fields["title"])
}

func TestReadTextFieldsFirstKeywordWins(t *testing.T) {
	data := metadatatest.PNG(t,
		metadatatest.Text("prompt", "first"),
		metadatatest.Text("prompt", "second"),
	)

	fields, err := ReadTextFields(data)
	require.NoError(t, err)
	assert.Equal(t, "first", fields["prompt"])
}

func TestReadTextFieldsNoChunks(t *testing.T) {
	fields, err := ReadTextFields(metadatatest.PNG(t))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestReadTextFieldsRejectsNonPNG(t *testing.T) {
	_, err := ReadTextFields([]byte("\xff\xd8\xff\xe0 not a png"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestReadTextFieldsDetectsCorruption(t *testing.T) {
	data := metadatatest.PNG(t, metadatatest.Text("prompt", "{}"))

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadTextFields(data[:len(pngSignature)+30])
		assert.ErrorIs(t, err, ErrCorruptImage)
	})

	t.Run("crc mismatch", func(t *testing.T) {
		broken := append([]byte(nil), data...)
		// first byte of the IHDR payload
		broken[len(pngSignature)+8] ^= 0xff
		_, err := ReadTextFields(broken)
		assert.ErrorIs(t, err, ErrCorruptImage)
	})
}
