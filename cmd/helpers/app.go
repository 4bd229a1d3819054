package helpers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fintra/credvault/config"
	"github.com/fintra/credvault/crypto"
	"github.com/fintra/credvault/logger"
	"github.com/fintra/credvault/probe"
	"github.com/fintra/credvault/ratelimit"
	"github.com/fintra/credvault/storage"
	"github.com/fintra/credvault/vault"
)

// EnvConfigPath overrides the configuration file path.
const EnvConfigPath = "CREDVAULT_CONFIG"

// ConfigPath resolves the configuration file for this invocation.
func ConfigPath() string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return "credvault.hcl"
}

// App bundles the wired-up service components for a CLI invocation.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	Store      *vault.TokenStore
	Limiter    *ratelimit.Limiter
	Registry   *probe.Registry
	Dispatcher *probe.Dispatcher
}

// Open loads the configuration file and constructs the service components.
func Open(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	logCfg := &logger.Config{
		Level:       logger.ParseLogLevel(cfg.LogLevel),
		Format:      logger.ParseOutputFormat(cfg.LogFormat),
		Outputs:     []io.Writer{os.Stderr},
		Environment: "production",
		Subsystem:   "credvault",
	}
	if cfg.LogFile != "" {
		logCfg.FileConfig = logger.DefaultFileConfig(cfg.LogFile)
	}
	log := logger.NewZerologLogger(logCfg)

	masterSecret := cfg.MasterSecret
	if masterSecret == "" {
		masterSecret = crypto.GenerateMasterSecret()
		printEphemeralSecretBanner(os.Stderr)
		log.Warn("no master_secret configured, generated an ephemeral one")
	}
	engine := crypto.NewEngine(masterSecret)

	backend, err := storage.NewBackend(cfg.Storage.Type, cfg.Storage.Config(), log.WithSubsystem("storage"))
	if err != nil {
		return nil, err
	}

	store, err := vault.NewTokenStore(ctx, engine, backend, log.WithSubsystem("vault"), &vault.Config{
		ClearOnStartup:   cfg.ClearOnStartup,
		AllowGlobalReset: cfg.AllowGlobalReset,
		EnableMetrics:    true,
	})
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.NewLimiter(log.WithSubsystem("ratelimit"), nil)
	if err != nil {
		return nil, err
	}

	probeTimeout, err := cfg.ProbeTimeoutDuration()
	if err != nil {
		return nil, err
	}

	registry := probe.NewRegistry()
	if err := registerProbers(registry, log.WithSubsystem("probe")); err != nil {
		return nil, err
	}
	dispatcherCfg := probe.DefaultDispatcherConfig()
	dispatcherCfg.Timeout = probeTimeout
	dispatcher := probe.NewDispatcher(registry, log.WithSubsystem("probe"), dispatcherCfg)

	return &App{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Limiter:    limiter,
		Registry:   registry,
		Dispatcher: dispatcher,
	}, nil
}

// registerProbers installs the built-in provider probers.
func registerProbers(registry *probe.Registry, log logger.Logger) error {
	mono, err := probe.NewMonobankProber(log, "https://api.monobank.ua")
	if err != nil {
		return err
	}
	registry.Register("monobank", mono)

	binance, err := probe.NewBinanceProber(log, "https://api.binance.com")
	if err != nil {
		return err
	}
	registry.Register("binance", binance)

	alpha, err := probe.NewAlphaVantageProber(log, "https://www.alphavantage.co")
	if err != nil {
		return err
	}
	registry.Register("alpha_vantage", alpha)

	return nil
}

// Close releases the app's resources.
func (a *App) Close() {
	a.Store.Close()
	a.Limiter.Close()
	a.Logger.Close()
}

func printEphemeralSecretBanner(w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "WARNING! No master_secret is configured. A random process-lifetime\n")
	fmt.Fprintf(w, "secret was generated: every credential stored during this run becomes\n")
	fmt.Fprintf(w, "permanently unrecoverable when the process exits. Set master_secret in\n")
	fmt.Fprintf(w, "the configuration file for any real deployment.\n")
	fmt.Fprintf(w, "\n")
}
