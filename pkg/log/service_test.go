package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/promptgallery/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{input: "debug", want: Debug},
		{input: " INFO ", want: Info},
		{input: "warning", want: Warn},
		{input: "error", want: Error},
		{input: "fatal", want: Fatal},
		{input: "", want: Info},
		{input: "verbose", want: Info},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("gallery", config.LogServerConfig{Level: "WARN", NoColor: true}, &buf)

	logger.Info("hidden %d", 1)
	logger.Warn("visible %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "[gallery]")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("gallery", config.LogServerConfig{Level: "DEBUG", JSON: true}, &buf)

	logger.Named("catalog").Debug("stored %s", "x.png")

	var entry logEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "gallery/catalog", entry.Service)
	assert.Equal(t, "stored x.png", entry.Message)
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("", config.LogServerConfig{Level: "INFO", NoColor: true}, &buf)

	logger.Info("100% done")
	assert.Contains(t, buf.String(), "100% done")
}

type taggedService struct {
	Log   LoggerService `fabric:"logger:catalog"`
	Base  LoggerService `fabric:"logger"`
	Other string
}

func TestLoggerTagProcessorInject(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerServiceWithWriter("gallery", config.LogServerConfig{Level: "INFO", JSON: true}, &buf)

	sc := container.NewServiceContainer()
	require.NoError(t, container.Register[LoggerServiceImpl](sc,
		container.With[LoggerService](),
		container.WithInstance(base)))

	ltp := NewLoggerTagProcessor()
	assert.True(t, ltp.CanProcess("Logger"))
	assert.True(t, ltp.CanProcess("logger:db"))
	assert.False(t, ltp.CanProcess("inject"))

	svc := &taggedService{}
	require.NoError(t, ltp.Inject(context.Background(), sc, svc))
	require.NotNil(t, svc.Log)
	require.NotNil(t, svc.Base)

	svc.Log.Info("hello")
	var entry logEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "gallery/catalog", entry.Service)
}

func TestLoggerTagProcessorRejectsNonPointer(t *testing.T) {
	sc := container.NewServiceContainer()
	err := NewLoggerTagProcessor().Inject(context.Background(), sc, taggedService{})
	assert.Error(t, err)
}
