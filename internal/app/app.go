// Package app is the start-up shared by the player binaries: flags, config,
// logging and the media engine.
package app

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"m3uplay/internal/config"
	"m3uplay/internal/engine"
	"m3uplay/internal/logger"
	"m3uplay/internal/mpv"
	"m3uplay/internal/player"
)

// Flags are the optional flags every player accepts.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "YAML config file",
			Sources: cli.EnvVars(config.EnvConfigFile),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
	}
}

// Setup loads config and builds the file logger for the named app.
func Setup(c *cli.Command, name string) (*config.Config, *zap.Logger, error) {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		conf.LogLevel = lvl
		if err := conf.Validate(); err != nil {
			return nil, nil, err
		}
	}
	log, err := logger.New(name, conf.LogFile, conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return conf, log, nil
}

// StartEngine brings up the media engine and its one player. Failure here is
// the only fatal error a player has.
func StartEngine(ctx context.Context, conf *config.Config, log *zap.Logger) (engine.Instance, engine.Player, error) {
	inst, err := mpv.NewInstance(conf.EngineOptions(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("media engine unavailable: %w", err)
	}
	p, err := startPlayer(ctx, inst, conf, log)
	if err != nil {
		return nil, nil, err
	}
	return inst, p, nil
}

// EngineFailed logs err and flushes the log; the caller exits right after,
// so deferred syncs never run.
func EngineFailed(log *zap.Logger, err error) {
	log.Error("engine start failed", zap.Error(err))
	_ = log.Sync()
}

// startPlayer creates the player on inst and applies the initial volume.
// inst is released when the player cannot be created.
func startPlayer(ctx context.Context, inst engine.Instance, conf *config.Config, log *zap.Logger) (engine.Player, error) {
	p, err := inst.NewPlayer(ctx)
	if err != nil {
		if relErr := inst.Release(); relErr != nil {
			log.Warn("engine instance release failed", zap.Error(relErr))
		}
		return nil, fmt.Errorf("media player unavailable: %w", err)
	}
	if err := p.SetVolume(conf.InitialVolume); err != nil {
		log.Warn("initial volume not applied", zap.Int("volume", conf.InitialVolume), zap.Error(err))
	}
	return p, nil
}

// PlayerConfig is the controller configuration for the named app.
func PlayerConfig(conf *config.Config, title string) player.Config {
	return player.Config{
		AppTitle:     title,
		UserAgent:    conf.UserAgent,
		VideoSurface: conf.Engine.WindowID,
	}
}
