package logger_test

import (
	"bytes"
	"testing"
	"time"

	btoml "github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/afdtools/afdstats/logger"
)

func TestConfigDecode(t *testing.T) {
	var c logger.Config
	_, err := btoml.Decode(`
format = "json"
level = "warn"
file = "/var/log/afdstatd.log"
max-size = "64m"
max-backups = 3
`, &c)
	require.NoError(t, err)
	require.Equal(t, "json", c.Format)
	require.Equal(t, zapcore.WarnLevel, c.Level)
	require.Equal(t, int64(64<<20), int64(c.MaxSize))
	require.Equal(t, 3, c.MaxBackups)
}

func TestNewLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)

	log.Debug("fine grained")
	require.NoError(t, log.Sync())
	require.Contains(t, buf.String(), "fine grained")
}

func TestConfigNewRespectsLevel(t *testing.T) {
	c := logger.NewConfig()
	c.Level = zapcore.WarnLevel

	var buf bytes.Buffer
	log, err := c.New(&buf)
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")
	require.NoError(t, log.Sync())

	out := buf.String()
	require.NotContains(t, out, "quiet")
	require.Contains(t, out, "loud")
}

func TestConfigNewRejectsUnknownFormat(t *testing.T) {
	c := logger.Config{Format: "xml"}
	_, err := c.New(&bytes.Buffer{})
	require.Error(t, err)
}

func TestDurationLiteral(t *testing.T) {
	f := logger.DurationLiteral("interval", 5*time.Second)
	require.Equal(t, "interval", f.Key)
	require.Equal(t, "5s", f.String)
}
