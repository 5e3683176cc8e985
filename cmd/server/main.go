// Package main is the entry point for the sandboxd server.
//
// Sandboxd executes untrusted, user-submitted code snippets (Python,
// Node.js) in disposable subprocesses. Each execution gets a private
// workspace and its own process group, a wall-clock timeout enforced by a
// group-wide kill, size-capped output capture, and guaranteed workspace
// cleanup. The server exposes a minimal HTTP interface and, alternatively,
// an MCP stdio transport.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/sandboxd/config"
	"github.com/isdmx/sandboxd/httpserver"
	"github.com/isdmx/sandboxd/logger"
	"github.com/isdmx/sandboxd/mcpserver"
	"github.com/isdmx/sandboxd/sandbox"
)

// newEngine maps application configuration onto the execution engine.
func newEngine(cfg *config.Config, log *zap.Logger) *sandbox.Engine {
	commands := make(map[string]string, len(cfg.Languages))
	extraEnv := make(map[string]map[string]string, len(cfg.Languages))
	for name, lang := range cfg.Languages {
		commands[name] = lang.Command
		extraEnv[name] = lang.Env
	}

	return sandbox.NewEngine(log, &sandbox.Config{
		DefaultTimeoutSec: cfg.Sandbox.DefaultTimeoutSec,
		MaxTimeoutSec:     cfg.Sandbox.MaxTimeoutSec,
		DrainTimeout:      cfg.GetDrainTimeout(),
		MaxOutputBytes:    cfg.Sandbox.MaxOutputBytes,
		MaxFileBytes:      cfg.Sandbox.MaxFileBytes,
		WorkRoot:          cfg.Sandbox.WorkRoot,
		Commands:          commands,
		ExtraEnv:          extraEnv,
	})
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution engine
			newEngine,

			// HTTP gateway
			func(cfg *config.Config, log *zap.Logger, engine *sandbox.Engine) *httpserver.Server {
				return httpserver.New(cfg, log, engine)
			},

			// MCP server
			func(cfg *config.Config, log *zap.Logger, engine *sandbox.Engine) (*mcpserver.MCPServer, error) {
				return mcpserver.New(cfg, log, engine)
			},
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, httpSrv *httpserver.Server, mcpSrv *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "http":
					lc.Append(fx.Hook{
						OnStart: httpSrv.Start,
						OnStop:  httpSrv.Stop,
					})
				case "stdio":
					go func() {
						if err := mcpSrv.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
