package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devmarvs/alice/internal/bridge"
	"github.com/devmarvs/alice/internal/config"
	"github.com/devmarvs/alice/internal/document"
	"github.com/devmarvs/alice/internal/health"
	"github.com/devmarvs/alice/internal/hotkey"
	"github.com/devmarvs/alice/internal/lifecycle"
	"github.com/devmarvs/alice/internal/logging"
	"github.com/devmarvs/alice/internal/port"
	"github.com/devmarvs/alice/internal/runner"
	"github.com/devmarvs/alice/internal/server"
	"github.com/devmarvs/alice/internal/window"
)

const appID = "io.github.devmarvs.alice"

var appVersion = "dev"

type rootOptions struct {
	configPath string
	root       string
	resources  string
	logLevel   string
	dev        bool
	devtools   bool
	statusPort int
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:   "alice",
	Short: "Desktop host for the Alice chat assistant",
	Long: `Starts the Alice desktop shell: the local chat backend, a splash
screen and the main chat window.

Dev mode (ALICE_DEV=1 outside production, or --dev) loads the UI from the
dev server and opens the diagnostics panel.`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runApp,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to alice.toml")
	pf.StringVar(&opts.root, "root", "", "directory the host treats as its own root")
	pf.StringVar(&opts.resources, "resources", "", "packaged resources directory")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.BoolVar(&opts.dev, "dev", false, "run in dev mode")
	f.BoolVar(&opts.devtools, "devtools", false, "open the diagnostics panel on start")
	f.IntVar(&opts.statusPort, "status-port", 0, "port for the local status API (0 picks one)")

	rootCmd.AddCommand(doctorCmd, bridgeCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(cmd, &cfg)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if opts.root != "" {
		cfg.OwnRoot = opts.root
	}
	if opts.resources != "" {
		cfg.ResourcesDir = opts.resources
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	flags := cmd.Flags()
	if flags.Changed("dev") {
		cfg.DevMode = opts.dev
	}
	if flags.Changed("devtools") {
		cfg.OpenDiagnostics = opts.devtools
	}
	if flags.Changed("status-port") {
		cfg.StatusPort = opts.statusPort
	}
}

func anchorsFor(cfg config.Config) runner.Anchors {
	return runner.Anchors{OwnRoot: cfg.OwnRoot, ResourcesRoot: cfg.ResourcesDir}
}

func newLogger(cfg config.Config) *zap.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Development = cfg.DevMode
	return logging.NewOrNop(logCfg)
}

func runApp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting alice",
		zap.String("version", appVersion),
		zap.Bool("dev", cfg.DevMode),
		zap.String("root", cfg.OwnRoot),
		zap.String("resources", cfg.ResourcesDir),
	)

	anchors := anchorsFor(cfg)
	resolve := func() runner.Resolution { return runner.Resolve(anchors, nil) }

	sup := runner.NewSupervisor(runner.Options{
		Interpreters: cfg.Interpreters,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	})

	client := bridge.New(cfg.BackendURL)
	watcher := health.NewWatcher(client, cfg.HealthInterval, logger)

	if host, p, err := port.HostPort(client.BaseURL()); err == nil && port.Listening(ctx, host, p) {
		logger.Warn("backend port already in use, another backend may be running",
			zap.String("host", host), zap.Int("port", p))
	}

	a := app.NewWithID(appID)

	deps := &server.Deps{Backend: sup, Health: watcher, Resolve: resolve}
	panel := window.NewDiagnosticsPanel(a, func(ctx context.Context) string {
		return server.Reporter(*deps)(ctx)
	})

	host := window.NewFyneHost(a, window.FyneHostOptions{
		Loader: document.NewLoader(),
		Bridge: client,
		Logger: logger,
	})
	orch := window.NewOrchestrator(window.Options{
		Host:            host,
		Diagnostics:     panel,
		Hotkeys:         hotkey.NewManager(logger),
		SplashDocument:  cfg.SplashDocument(),
		MainTarget:      cfg.MainTarget(),
		DevMode:         cfg.DevMode,
		OpenDiagnostics: cfg.OpenDiagnostics,
		Hotkey:          cfg.Hotkey,
		Logger:          logger,
	})

	ctrl := lifecycle.New(lifecycle.Options{
		Resolve: resolve,
		Backend: sup,
		Windows: orch,
		Quit:    a.Quit,
		Policy:  lifecycle.PolicyFor(runtime.GOOS),
		Logger:  logger,
	})
	deps.Controller = ctrl

	host.OnAllClosed(ctrl.AllSurfacesClosed)
	a.Lifecycle().SetOnStarted(ctrl.Ready)
	a.Lifecycle().SetOnEnteredForeground(ctrl.Activate)
	a.Lifecycle().SetOnStopped(func() {
		ctrl.BeforeExit()
		ctrl.Exited()
	})

	showMain := func() {
		if host.SurfaceCount() == 0 {
			ctrl.Activate()
			return
		}
		if m, ok := orch.Main(); ok {
			m.Show()
		}
	}
	if !window.InstallTray(a, showMain, orch.ToggleDiagnostics) {
		logger.Debug("system tray not available")
	}

	if statusPort, err := port.StatusPort(cfg.StatusPort); err != nil {
		logger.Warn("status API disabled", zap.Error(err))
	} else {
		srv := server.New(*deps, statusPort)
		logger.Info("status API listening", zap.String("addr", fmt.Sprintf("127.0.0.1:%d", statusPort)))
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Warn("status API stopped", zap.Error(err))
			}
		}()
	}

	go watcher.Run(ctx)

	appDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("signal received, quitting")
			fyne.Do(a.Quit)
		case <-appDone:
		}
	}()

	a.Run()
	close(appDone)

	logger.Info("alice stopped", zap.String("state", ctrl.State().String()))
	return nil
}
