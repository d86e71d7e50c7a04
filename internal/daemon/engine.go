package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/challenge"
	"github.com/eliteGoblin/focusd/pointgate/internal/classify"
	"github.com/eliteGoblin/focusd/pointgate/internal/config"
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
	"github.com/eliteGoblin/focusd/pointgate/internal/economy"
	"github.com/eliteGoblin/focusd/pointgate/internal/infra"
	"github.com/eliteGoblin/focusd/pointgate/internal/observer"
	"github.com/eliteGoblin/focusd/pointgate/internal/policy"
	"github.com/eliteGoblin/focusd/pointgate/internal/usecase"
)

// ConfigFile is the YAML config name inside the data directory.
const ConfigFile = "config.yaml"

// StateInterval is how often the running daemon publishes state.json.
const StateInterval = 5 * time.Second

// Options configures NewEngine. Nil capabilities are replaced by the real OS adapters.
type Options struct {
	DataDir        string
	SelfName       string
	Logger         *zap.Logger
	ProcessManager domain.ProcessManager
	WindowSource   domain.WindowSource
	Discoverer     domain.AppDiscoverer
	Validator      challenge.Validator
	DisableJournal bool
}

// Engine is the fully wired monitoring and enforcement engine.
type Engine struct {
	Config     *config.Store
	Economy    *economy.Economy
	Classifier *classify.Classifier
	Observer   *observer.Observer
	Enforcer   *usecase.EnforcerImpl
	Tracker    *usecase.ActivityTracker
	Gate       *challenge.TimedGate
	Journal    domain.ActivityJournal
	Commands   *infra.FileCommandQueue
	State      *infra.JSONStateStore

	dataDir      string
	categories   domain.CategoryStore
	windowSource string
	started      time.Time
	logger       *zap.Logger
	closers      []io.Closer
}

// NewEngine loads config and state from opts.DataDir and wires every component.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &Engine{dataDir: opts.DataDir, logger: logger, started: time.Now()}
	e.Config = config.Load(filepath.Join(opts.DataDir, ConfigFile), logger)
	cfg := e.Config.Current()

	ledger, err := e.openLedger(cfg)
	if err != nil {
		return nil, err
	}
	e.Economy = economy.New(cfg, ledger, logger.Named("economy"))

	e.categories = infra.NewJSONCategoryStore(opts.DataDir)
	e.Classifier = classify.NewClassifier(e.categories, logger.Named("classify"))

	pm := opts.ProcessManager
	if pm == nil {
		pm = infra.NewProcessManager()
	}
	windows := opts.WindowSource
	e.windowSource = "custom"
	if windows == nil {
		windows, e.windowSource = infra.NewWindowSource(pm)
	}
	e.closers = append(e.closers, windows)
	discoverer := opts.Discoverer
	if discoverer == nil {
		discoverer = infra.NewAppDirScanner(policy.NewRegistry().InstallGlobs()...)
	}

	if !opts.DisableJournal {
		journal, err := infra.OpenJournal(opts.DataDir)
		if err != nil {
			logger.Warn("activity journal unavailable", zap.Error(err))
		} else {
			e.Journal = journal
			e.closers = append(e.closers, journal)
		}
	}

	e.Gate = challenge.NewTimedGate(cfg.ChallengeTimeout(), opts.Validator, logger.Named("challenge"))

	e.Enforcer = usecase.NewEnforcer(usecase.EnforcerConfig{
		Interval:         cfg.EnforcerInterval(),
		TerminateTimeout: cfg.TerminateTimeout(),
		InstalledAppsTTL: cfg.InstalledAppsTTL(),
		Grace:            cfg.Grace(),
	}, pm, e.Economy, e.Gate, discoverer, logger.Named("enforcer"))

	e.Observer = observer.New(observer.Config{
		Interval:    cfg.ObserverInterval(),
		CacheTTL:    cfg.CacheTTL(),
		EventBuffer: cfg.EventBuffer,
	}, windows, pm, opts.SelfName, logger.Named("observer"))

	e.Tracker = usecase.NewActivityTracker(usecase.TrackerConfig{
		CheckInterval:             cfg.CheckInterval(),
		ProductivePointsPerMinute: cfg.ProductivePointsPerMinute,
		BlockDurationMinutes:      cfg.BlockDurationMinutes,
	}, e.Classifier, e.Economy, e.Enforcer, e.Journal, logger.Named("tracker"))

	e.Commands = infra.NewFileCommandQueue(opts.DataDir)
	e.State = infra.NewJSONStateStore(opts.DataDir)

	logger.Info("engine ready",
		zap.String("data_dir", opts.DataDir),
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.String("window_source", e.windowSource))
	return e, nil
}

func (e *Engine) openLedger(cfg config.Config) (domain.LedgerStore, error) {
	store, err := OpenLedger(e.dataDir, cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}
	return store, nil
}

// OpenLedger opens the ledger backend selected by cfg. Encrypted stores
// implement io.Closer and must be closed by the caller.
func OpenLedger(dataDir string, cfg config.Config) (domain.LedgerStore, error) {
	if cfg.LedgerBackend != config.BackendEncrypted {
		return infra.NewJSONLedgerStore(dataDir), nil
	}
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(dataDir), infra.LedgerPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger key: %w", err)
	}
	store, err := infra.NewEncryptedLedgerStore(dataDir, key)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// RotateLedgerKey re-encrypts ledger.db under a new key. The daemon must be
// stopped; its open connection would keep the old key.
func RotateLedgerKey(dataDir string) error {
	provider := infra.NewFileKeyProvider(dataDir)
	if !provider.KeyExists() {
		return fmt.Errorf("no encrypted ledger key in %s", dataDir)
	}
	key, err := provider.GetKey()
	if err != nil {
		return err
	}
	store, err := infra.NewEncryptedLedgerStore(dataDir, key)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RotateKey(provider)
}

// WindowSourceName reports which window backend is in use ("x11", "process" or "custom").
func (e *Engine) WindowSourceName() string {
	return e.windowSource
}

// Daemon assembles the supervisor over every engine loop.
func (e *Engine) Daemon() (*Daemon, error) {
	watcher, err := infra.NewCategoryWatcher(e.categories.Path(), e.Classifier.Reload, e.logger.Named("categories"))
	if err != nil {
		return nil, err
	}

	loops := []Loop{
		{Name: "observer", Run: e.Observer.Run},
		{Name: "enforcer", Run: e.Enforcer.Run},
		{Name: "tracker", Run: func(ctx context.Context) error {
			return e.Tracker.Run(ctx, e.Observer.Events())
		}},
		{Name: "categories", Run: watcher.Run},
		{Name: "commands", Run: func(ctx context.Context) error {
			return e.Commands.Watch(ctx, e.Apply, e.logger.Named("commands"))
		}},
		{Name: "state", Run: e.publishLoop},
	}
	return New(e.Enforcer, e.logger, loops...), nil
}

// Apply executes one queued CLI command.
func (e *Engine) Apply(cmd domain.Command) {
	log := e.logger.With(zap.String("command", string(cmd.Kind)), zap.String("app", cmd.App))
	switch cmd.Kind {
	case domain.CommandBlock:
		minutes := cmd.Minutes
		if minutes == 0 {
			minutes = e.Config.Current().BlockDurationMinutes
		}
		created := e.Enforcer.Block(cmd.App, minutes)
		log.Info("block command applied", zap.Int("minutes", minutes), zap.Bool("new", created))
	case domain.CommandUnblock:
		log.Info("unblock command applied", zap.Bool("was_blocked", e.Enforcer.Unblock(cmd.App)))
	case domain.CommandChallenge:
		if err := e.Gate.Complete(cmd.Response); err != nil {
			log.Info("challenge response not accepted", zap.Error(err))
		}
	default:
		log.Warn("unknown command ignored")
	}
	e.PublishState()
}

// Snapshot builds the state the daemon publishes.
func (e *Engine) Snapshot() domain.DaemonState {
	now := time.Now()
	st := domain.DaemonState{
		PID:           os.Getpid(),
		StartedAt:     e.started,
		UpdatedAt:     now,
		WindowSource:  e.windowSource,
		Blocked:       make([]domain.BlockStatus, 0),
		Windows:       len(e.Observer.Snapshot()),
		DroppedEvents: e.Observer.Dropped(),
	}
	for _, b := range e.Enforcer.Blocked() {
		st.Blocked = append(st.Blocked, domain.BlockStatus{
			App:              b.App,
			Indefinite:       b.Indefinite,
			RemainingSeconds: int64(b.Remaining(now).Seconds()),
		})
	}
	if cur, ok := e.Tracker.Current(); ok {
		st.Current = &cur
	}
	if p, ok := e.Gate.Current(); ok {
		st.Challenge = p.App
	}
	return st
}

// PublishState writes state.json. Failures are logged.
func (e *Engine) PublishState() {
	if err := e.State.Save(e.Snapshot()); err != nil {
		e.logger.Warn("failed to publish daemon state", zap.Error(err))
	}
}

func (e *Engine) publishLoop(ctx context.Context) error {
	e.PublishState()
	ticker := time.NewTicker(StateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := e.State.Remove(); err != nil {
				e.logger.Warn("failed to remove daemon state", zap.Error(err))
			}
			return nil
		case <-ticker.C:
			e.PublishState()
		}
	}
}

// Close releases databases and the display connection.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
