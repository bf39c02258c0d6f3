package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"m3uplay/internal/config"
	"m3uplay/internal/engine/enginetest"
)

func runSetup(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var conf *config.Config
	var setupErr error
	cmd := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, c *cli.Command) error {
			var log *zap.Logger
			conf, log, setupErr = Setup(c, "test")
			if log != nil {
				_ = log.Sync()
			}
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
	return conf, setupErr
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m3uplay.yaml")
	body := "log_file: " + filepath.Join(dir, "test.log") + "\ninitial_volume: 25\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	conf, err := runSetup(t, "--config", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 25, conf.InitialVolume)
}

func TestSetupConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m3uplay.yaml")
	body := "log_file: " + filepath.Join(dir, "test.log") + "\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv(config.EnvConfigFile, path)

	conf, err := runSetup(t)
	require.NoError(t, err)
	assert.Equal(t, "warn", conf.LogLevel)
}

func TestSetupBadLogLevel(t *testing.T) {
	t.Setenv(config.EnvLogFile, filepath.Join(t.TempDir(), "test.log"))

	_, err := runSetup(t, "--log-level", "loud")
	assert.Error(t, err)
}

func TestStartPlayer(t *testing.T) {
	inst := enginetest.NewInstance()
	conf := config.Default()
	conf.InitialVolume = 35

	p, err := startPlayer(context.Background(), inst, conf, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, inst.Player, p)

	v, err := p.Volume()
	require.NoError(t, err)
	assert.Equal(t, 35, v)
	assert.Equal(t, []string{"instance.new_player", "player.set_volume"}, inst.Journal.Calls())
}

func TestStartPlayerFailureReleasesInstance(t *testing.T) {
	inst := enginetest.NewInstance()
	inst.NewErr = errors.New("socket never appeared")

	p, err := startPlayer(context.Background(), inst, config.Default(), zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "socket never appeared")
	assert.Equal(t, []string{"instance.new_player", "instance.release"}, inst.Journal.Calls())
}

func TestPlayerConfig(t *testing.T) {
	conf := config.Default()
	conf.Engine.WindowID = 77
	conf.UserAgent = "UA/2"

	pc := PlayerConfig(conf, "M3U Player")
	assert.Equal(t, "M3U Player", pc.AppTitle)
	assert.Equal(t, "UA/2", pc.UserAgent)
	assert.Equal(t, int64(77), pc.VideoSurface)
}

type syncRecorder struct {
	lines  []string
	synced bool
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.lines = append(r.lines, string(p))
	return len(p), nil
}

func (r *syncRecorder) Sync() error {
	r.synced = true
	return nil
}

func TestEngineFailedFlushesLog(t *testing.T) {
	rec := &syncRecorder{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), rec, zapcore.InfoLevel)

	EngineFailed(zap.New(core), errors.New("mpv not found"))

	require.Len(t, rec.lines, 1)
	assert.Contains(t, rec.lines[0], "engine start failed")
	assert.Contains(t, rec.lines[0], "mpv not found")
	assert.True(t, rec.synced)
}
