// Command partyroom starts the multiplayer mini-game room server.
//
// The server exposes the WebSocket gateway at /ws, a REST API under /api,
// an MCP admin endpoint at /mcp and a runtime dashboard at /debug/statsviz/.
// With --mcp-stdio the admin tools are also served over stdin/stdout.
//
// Every flag can be set from the environment (see --help); a .env file in
// the working directory is loaded first. An optional ngrok tunnel gives
// the server a public URL during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/arl/statsviz"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/partyroom/api"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/session"
	"github.com/wricardo/partyroom/logging"
	"github.com/wricardo/partyroom/transport/mcp"
	"github.com/wricardo/partyroom/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "partyroom"
)

// settings holds the resolved command-line configuration.
type settings struct {
	Host         string
	Port         int
	ConfigDir    string
	LogLevel     string
	RoomCapacity int
	DefaultGame  string
	MCPStdio     bool
	NgrokEnabled bool
	NgrokAuth    string
	NgrokDomain  string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// app is the wired server.
type app struct {
	handler  http.Handler
	registry *session.Registry
	hub      *websocket.Hub
	configs  *config.Manager
	mcp      *mcp.Server
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "multiplayer mini-game room server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory with <game>.json|yaml default settings (empty for built-ins only)",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.IntFlag{
				Name:    "room-capacity",
				Value:   8,
				Usage:   "maximum players per room (at most 8)",
				Sources: cli.EnvVars("ROOM_CAPACITY"),
			},
			&cli.StringFlag{
				Name:    "default-game",
				Value:   string(config.CellMatch),
				Usage:   "game selected when a room opens",
				Sources: cli.EnvVars("DEFAULT_GAME"),
			},
			&cli.BoolFlag{
				Name:  "mcp-stdio",
				Usage: "also serve the admin tools over stdin/stdout",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, settingsFrom(cmd))
		},
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "check the game settings files in --config-dir",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return validateConfigs(cmd.Root().Writer, cmd.String("config-dir"))
				},
			},
		},
	}
}

// errInvalidConfigs is returned by the validate command when any file has
// a problem.
var errInvalidConfigs = errors.New("one or more settings files are invalid")

// validateConfigs prints a report for every settings file in dir.
func validateConfigs(w io.Writer, dir string) error {
	if dir == "" {
		fmt.Fprintln(w, "No config directory; built-in defaults are used.")
		return nil
	}
	manager, err := config.NewManager(dir, nil)
	if err != nil {
		return err
	}
	defer manager.Close()

	reports, err := manager.Validate()
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintf(w, "No settings files in %s; built-in defaults are used.\n", dir)
		return nil
	}

	failed := 0
	for _, r := range reports {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "✗ %s: %v\n", filepath.Base(r.File), r.Err)
		case len(r.Issues) > 0:
			failed++
			fmt.Fprintf(w, "✗ %s: %s\n", filepath.Base(r.File), config.Describe(r.Config))
			for _, issue := range r.Issues {
				fmt.Fprintf(w, "    - %s\n", issue)
			}
		default:
			fmt.Fprintf(w, "✓ %s: %s\n", filepath.Base(r.File), config.Describe(r.Config))
		}
	}

	fmt.Fprintf(w, "%d/%d files valid\n", len(reports)-failed, len(reports))
	if failed > 0 {
		return errInvalidConfigs
	}
	return nil
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		Host:         cmd.String("host"),
		Port:         cmd.Int("port"),
		ConfigDir:    cmd.String("config-dir"),
		LogLevel:     cmd.String("log-level"),
		RoomCapacity: cmd.Int("room-capacity"),
		DefaultGame:  cmd.String("default-game"),
		MCPStdio:     cmd.Bool("mcp-stdio"),
		NgrokEnabled: cmd.Bool("ngrok"),
		NgrokAuth:    cmd.String("ngrok-auth"),
		NgrokDomain:  cmd.String("ngrok-domain"),
	}
}

// newApp wires config manager, gateway, registry and HTTP handlers.
func newApp(cfg settings, logger *log.Logger) (*app, error) {
	defaultGame, err := config.ParseGameType(cfg.DefaultGame)
	if err != nil {
		return nil, err
	}

	if cfg.ConfigDir != "" {
		if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	configs, err := config.NewManager(cfg.ConfigDir, logger.WithPrefix(AppName+"/config"))
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	hub := websocket.NewHub(logger.WithPrefix(AppName + "/ws"))
	registry := session.NewRegistry(hub, session.Options{
		Capacity:     cfg.RoomCapacity,
		Factory:      session.DefaultFactory(),
		LoadDefaults: configs.Defaults,
		DefaultGame:  defaultGame,
		Logger:       logger.WithPrefix(AppName + "/room"),
	})
	hub.Attach(registry)

	apiServer := api.NewServer(registry, hub, configs, logger.WithPrefix(AppName+"/api"))
	mcpServer := mcp.NewServer(registry, hub)

	router := apiServer.Router()
	router.Handle("/mcp", mcpServer.Handler())

	// statsviz registers on a ServeMux; mount it under the router.
	debugMux := http.NewServeMux()
	if err := statsviz.Register(debugMux); err != nil {
		return nil, fmt.Errorf("failed to register statsviz: %w", err)
	}
	router.PathPrefix("/debug/statsviz").Handler(debugMux)

	return &app{
		handler:  router,
		registry: registry,
		hub:      hub,
		configs:  configs,
		mcp:      mcpServer,
	}, nil
}

func (a *app) close() {
	a.registry.Close()
	a.configs.Close()
}

// run starts every listener and blocks until ctx is cancelled.
func run(ctx context.Context, cfg settings) error {
	logger := logging.New(AppName, cfg.LogLevel)
	if cfg.MCPStdio {
		// stdout carries the MCP stream.
		logger = logging.NewWithWriter(os.Stderr, AppName, cfg.LogLevel)
	}
	logger.Info("Starting", "version", Version)

	a, err := newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.configs.Watch(ctx); err != nil {
			logger.Warn("Config watcher stopped", "err", err)
		}
	}()

	addr := cfg.addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("Endpoints",
			"api", fmt.Sprintf("http://%s/api", addr),
			"ws", fmt.Sprintf("ws://%s/ws", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr),
			"statsviz", fmt.Sprintf("http://%s/debug/statsviz/", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, a.handler, logger)
		}()
	}

	if cfg.MCPStdio {
		go func() {
			logger.Info("MCP stdio server ready")
			if err := server.ServeStdio(a.mcp.GetMCPServer()); err != nil {
				logger.Error("MCP stdio server error", "err", err)
			}
			// stdin closed: the client is gone.
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}

	wg.Wait()
	logger.Info("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg settings, handler http.Handler, logger *log.Logger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("Starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Info("Using custom ngrok domain", "domain", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.Error("Failed to start ngrok tunnel", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("Failed to close ngrok tunnel", "err", err)
		}
	}()

	url := tun.URL()
	logger.Info("Ngrok tunnel established", "url", url)
	logger.Info("Ngrok endpoints",
		"api", url+"/api",
		"ws", url+"/ws",
		"mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("Ngrok server error", "err", err)
	}
	logger.Info("Ngrok tunnel closed")
}
