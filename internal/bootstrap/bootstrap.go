package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	pomodoroinadapter "studypomo/internal/modules/pomodoro/adapter/in"
	pomodorooutadapter "studypomo/internal/modules/pomodoro/adapter/out"
	"studypomo/internal/modules/pomodoro/domain"
	pomodoroout "studypomo/internal/modules/pomodoro/port/out"
	pomodorousecase "studypomo/internal/modules/pomodoro/usecase"
	sessioninadapter "studypomo/internal/modules/session/adapter/in"
	sessionoutadapter "studypomo/internal/modules/session/adapter/out"
	sessionin "studypomo/internal/modules/session/port/in"
	sessionservice "studypomo/internal/modules/session/service"
	sessionusecase "studypomo/internal/modules/session/usecase"
	"studypomo/internal/platform/clock"
	"studypomo/internal/platform/config"
	"studypomo/internal/platform/id"
	"studypomo/internal/platform/metrics"
	"studypomo/internal/platform/tx"
	uiapp "studypomo/internal/ui/app"
)

// App holds the wired handlers and the resources Close releases.
type App struct {
	Config      config.Config
	Logger      zerolog.Logger
	PomodoroCLI pomodoroinadapter.CLIHandler
	SessionCLI  sessioninadapter.CLIHandler
	SessionHTTP *sessioninadapter.HTTPHandler
	// Metrics is nil when metrics.addr is empty.
	Metrics *metrics.Server

	fileStore *pomodorooutadapter.FileStateStore
	pomodoro  *pomodorousecase.Interactor
	closers   []io.Closer
}

// NewSessions wires only the session backend. The serve command uses it so a
// backend process never owns a timer.
func NewSessions(cfg config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	sessions, err := app.openSessions(clock.System())
	if err != nil {
		return nil, err
	}
	app.SessionCLI = sessioninadapter.NewCLIHandler(sessions)
	app.SessionHTTP = sessioninadapter.NewHTTPHandler(sessions, logger)
	return app, nil
}

// New wires the full application and restores the persisted timer and cycle.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	clk := clock.System()
	app := &App{Config: cfg, Logger: logger}

	sessions, err := app.openSessions(clk)
	if err != nil {
		return nil, err
	}
	app.SessionCLI = sessioninadapter.NewCLIHandler(sessions)
	app.SessionHTTP = sessioninadapter.NewHTTPHandler(sessions, logger)

	var api pomodoroout.SessionAPI = pomodorooutadapter.NewLocalSessionAPI(sessions)
	if cfg.Backend.URL != "" {
		api = pomodorooutadapter.NewHTTPSessionAPI(cfg.Backend.URL, cfg.Backend.Timeout)
		logger.Info().Str("url", cfg.Backend.URL).Msg("using remote session backend")
	}

	store, err := app.openStateStore()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	var publisher pomodoroout.EventPublisher
	if cfg.Events.NATSURL != "" {
		nats, err := pomodorooutadapter.ConnectNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.closers = append(app.closers, nats)
		publisher = nats
	}

	interactor, err := pomodorousecase.NewInteractor(api, store, publisher, pomodorousecase.Options{
		Clock:              clk,
		TickInterval:       cfg.Timer.TickInterval,
		AutoStartDelay:     cfg.Timer.AutoStartDelay,
		CheckpointInterval: cfg.Timer.CheckpointInterval,
		Defaults:           DefaultSettings(cfg.Pomodoro),
		Logger:             logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new pomodoro interactor: %w", err)
	}
	app.pomodoro = interactor
	app.PomodoroCLI = pomodoroinadapter.NewCLIHandler(interactor)

	if _, err := interactor.Restore(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("restore timer: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		app.Metrics = metrics.NewServer(cfg.Metrics.Addr, logger)
	}
	return app, nil
}

// DefaultSettings turns the configured pomodoro defaults into engine settings.
func DefaultSettings(cfg config.PomodoroConfig) domain.Settings {
	return domain.Settings{
		FocusDuration:      domain.Int(cfg.FocusDuration),
		ShortBreakDuration: domain.Int(cfg.ShortBreakDuration),
		LongBreakDuration:  domain.Int(cfg.LongBreakDuration),
		AutoStart:          domain.Bool(cfg.AutoStart),
		AutoStartFocus:     cfg.AutoStartFocus,
		AutoStartBreak:     cfg.AutoStartBreak,
	}
}

func (a *App) openSessions(clk clock.Clock) (sessionin.Usecase, error) {
	db, err := sessionoutadapter.OpenSQLite(a.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	a.closers = append(a.closers, db)
	repo, err := sessionoutadapter.NewSQLiteSessionRepository(db)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("new session repository: %w", err)
	}
	return sessionusecase.NewInteractor(
		sessionservice.NewSessionService(clk, id.UUID{}),
		repo,
		sessionoutadapter.NewVaultSessionStore(a.Config.VaultPath),
		tx.NewSQLManager(db),
		a.Logger,
	), nil
}

func (a *App) openStateStore() (pomodoroout.PersistenceAdapter, error) {
	switch a.Config.Persistence.Backend {
	case "memory":
		return pomodorooutadapter.NewMemoryStateStore(), nil
	case "redis":
		store, err := pomodorooutadapter.OpenRedisStateStore(a.Config.Persistence.Redis, a.Config.Persistence.KeyPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		a.fileStore = pomodorooutadapter.NewFileStateStore(filepath.Join(a.Config.StateDir, "state"), a.Logger)
		return a.fileStore, nil
	}
}

// WatchState reports snapshot changes made by other processes. It is a no-op
// unless the file persistence backend is in use.
func (a *App) WatchState(ctx context.Context, onChange func(key string)) error {
	if a.fileStore == nil {
		return nil
	}
	return a.fileStore.Watch(ctx, onChange)
}

// Close stops the timer, persisting it when live, then releases every
// resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if a.pomodoro != nil {
		errs = append(errs, a.pomodoro.Close())
		a.pomodoro = nil
	}
	if a.Metrics != nil {
		errs = append(errs, a.Metrics.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func RunTUI(ctx context.Context, app *App) error {
	model := uiapp.NewModel(app.Config.VaultPath, app.PomodoroCLI, app.SessionCLI, app.WatchState)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
