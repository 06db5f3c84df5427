package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	config "github.com/mwantia/promptgallery/internal/config/server"
)

func TestConfigGenerate(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.yaml")

	generate := func(args ...string) string {
		var out bytes.Buffer
		cmd := NewConfigCommand()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"generate", "--output", dir}, args...))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Contains(t, generate(), "Generated")

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var cfg config.BaseServerConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, config.GetServerDefault().HTTP.Address, cfg.HTTP.Address)

	require.NoError(t, os.WriteFile(filename, []byte("custom: true\n"), 0644))
	assert.Contains(t, generate(), "Skipping")
	data, err = os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))

	assert.Contains(t, generate("--overwrite"), "Generated")
}
