package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type short string

func (s short) ShortString() string { return string(s)[:3] }

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, err = New(Config{Level: "info", Encoder: "xml"})
	require.Error(t, err)
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNamedLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	logger := zap.New(core)
	cfg := Config{Modules: map[string]string{"sync": "warn"}}

	Named(logger, cfg, "sync").Info("hidden")
	require.Empty(t, buf.String())
	Named(logger, cfg, "p2p").Info("shown", ZShortStringer("id", short("abcdef")))
	require.Contains(t, buf.String(), `"id":"abc"`)
}
