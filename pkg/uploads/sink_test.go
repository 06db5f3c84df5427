package uploads

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink() *Sink {
	return NewSink(afero.NewMemMapFs(), "/data/uploads", []string{"png", ".JPG", " gif "})
}

func TestAllowed(t *testing.T) {
	s := newTestSink()

	assert.True(t, s.Allowed("a.png"))
	assert.True(t, s.Allowed("a.PNG"))
	assert.True(t, s.Allowed("photo.jpg"))
	assert.True(t, s.Allowed("anim.gif"))
	assert.False(t, s.Allowed("a.jpeg"))
	assert.False(t, s.Allowed("archive.tar.gz"))
	assert.False(t, s.Allowed("noext"))
}

func TestGenerateName(t *testing.T) {
	a := GenerateName("My Image.PNG")
	b := GenerateName("My Image.PNG")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.Len(t, strings.TrimSuffix(a, ".png"), 32)
	assert.NotContains(t, a, "-")
	assert.Len(t, GenerateName("noext"), 32)
}

func TestSaveReadRemove(t *testing.T) {
	s := newTestSink()
	name := GenerateName("x.png")

	path, err := s.Save([]byte("payload"), name)
	require.NoError(t, err)
	assert.Equal(t, "/data/uploads/"+name, path)

	data, err := s.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, s.Remove(name))
	_, err = s.ReadFile(name)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// already gone
	require.NoError(t, s.Remove(name))
}

func TestRejectsPathTraversal(t *testing.T) {
	s := newTestSink()

	for _, name := range []string{"", "..", "../secret.png", "nested/file.png", "/etc/passwd"} {
		_, err := s.Save([]byte("x"), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, err = s.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}
