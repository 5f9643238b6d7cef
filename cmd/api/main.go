// @title           Project Workspace API
// @version         1.0
// @description     Organizations, projects, tasks, approvals, automation and change feeds.

// @host      localhost:8000
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "project-workspace-api/docs" // Swagger docs import
)

var (
	version = "dev"
	cli     struct {
		Config  string           `help:"Path to the YAML configuration file." default:"configs/config.yaml" type:"path"`
		Serve   ServeCmd         `cmd:"" default:"1" help:"Run the HTTP API, change feed and jobs"`
		Migrate MigrateCmd       `cmd:"" help:"Apply database migrations and exit"`
		Token   TokenCmd         `cmd:"" help:"Sign a development bearer token"`
		Version kong.VersionFlag `help:"Print version and exit."`
	}
)

// Globals are shared by every command.
type Globals struct {
	ConfigPath string
	Version    string
}

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("workspace-api"),
		kong.Description("Project workspace command API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{ConfigPath: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
