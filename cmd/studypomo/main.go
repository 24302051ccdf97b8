package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"studypomo/internal/bootstrap"
	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
	sessiondto "studypomo/internal/modules/session/dto"
	"studypomo/internal/platform/config"
	"studypomo/internal/platform/logging"
	"studypomo/internal/platform/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	vaultPath  string
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "studypomo",
		Short:         "Pomodoro timer for study sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.vaultPath, "vault", ".", "Obsidian vault path")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <vault>/.studypomo/config.yaml)")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newStopCmd(flags))
	root.AddCommand(newCycleCmd(flags))
	root.AddCommand(newSessionCmd(flags))
	root.AddCommand(newServeCmd(flags))
	return root
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	return config.Load(flags.vaultPath, flags.configPath)
}

func loadApp(ctx context.Context, flags *globalFlags) (*bootstrap.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, logging.New(cfg.Logging, os.Stderr))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var kind, subject string
	var minutes int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the timer in the foreground, continuing a restored session if one is live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := loadApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			events := app.PomodoroCLI.Events(64)
			status := app.PomodoroCLI.Status(ctx)
			if status.State == domain.TimerRunning || status.State == domain.TimerPaused {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "continuing %s timer, %s left\n", status.State, formatClock(status.Remaining))
			} else {
				out, err := app.PomodoroCLI.Start(ctx, kind, minutes, subject)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s started (%d min) session=%s\n", out.Type, out.DurationSeconds/60, out.SessionID)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return followEvents(gctx, cmd.OutOrStdout(), events)
			})
			if app.Metrics != nil {
				g.Go(app.Metrics.Serve)
				g.Go(func() error {
					<-gctx.Done()
					return app.Metrics.Close()
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, errRunFinished) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "focus", "session type: focus|short_break|long_break")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "session length in minutes (default from config)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject area id")
	return cmd
}

var errRunFinished = errors.New("run finished")

// followEvents prints timer events until the chain of sessions ends or ctx is
// done. A completion ends the run unless the next session starts on its own.
func followEvents(ctx context.Context, out io.Writer, events <-chan dto.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return errRunFinished
			}
			switch event.Type {
			case dto.EventTick:
				if event.Remaining%60 == 0 {
					_, _ = fmt.Fprintf(out, "%s %s left\n", event.SessionType, formatClock(event.Remaining))
				}
			case dto.EventSessionCompleted:
				_, _ = fmt.Fprintf(out, "%s completed, next: %s\n", event.SessionType, event.Next)
				if !event.AutoStartArmed {
					return errRunFinished
				}
			case dto.EventSessionInterrupted:
				_, _ = fmt.Fprintf(out, "%s interrupted\n", event.SessionType)
				return errRunFinished
			case dto.EventAutoStartCancelled:
				_, _ = fmt.Fprintln(out, "auto start cancelled")
				return errRunFinished
			case dto.EventAutoStartFailed, dto.EventError:
				_, _ = fmt.Fprintf(out, "error: %s\n", event.Message)
				if event.Type == dto.EventAutoStartFailed {
					return errRunFinished
				}
			default:
				_, _ = fmt.Fprintf(out, "%s %s\n", event.Type, event.SessionType)
			}
		}
	}
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the studypomo terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, closer, err := logging.OpenFile(cfg.Logging, cfg.LogPath)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			ctx, stop := signalContext()
			defer stop()
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return bootstrap.RunTUI(ctx, app)
		},
	}
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted timer and cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			app, err := loadApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			printStatus(cmd.OutOrStdout(), app.PomodoroCLI.Status(ctx))
			return nil
		},
	}
}

func printStatus(out io.Writer, s dto.StatusOutput) {
	_, _ = fmt.Fprintf(out, "state: %s\n", s.State)
	if s.Session != nil {
		_, _ = fmt.Fprintf(out, "session: %s %s (%d min)\n", s.Session.ID, s.Session.Type, s.Session.PlannedDuration)
		_, _ = fmt.Fprintf(out, "remaining: %s\n", formatClock(s.Remaining))
	}
	_, _ = fmt.Fprintf(out, "cycle: %d focus done, %d archived, next %s\n", s.Cycle.CompletedFocusSessions, s.Cycle.CycleHistoryLength, s.Cycle.NextSessionType)
	if s.AutoStart.Pending {
		wait := time.Duration(s.AutoStart.RemainingMs) * time.Millisecond
		_, _ = fmt.Fprintf(out, "auto start: %s (%d min) in %s\n", s.AutoStart.Type, s.AutoStart.DurationMinutes, wait.Round(time.Second))
	}
}

func newStopCmd(flags *globalFlags) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Interrupt the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			app, err := loadApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			out, err := app.PomodoroCLI.Stop(ctx, notes)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stopped %s %s after %d min\n", out.Type, out.SessionID, out.ActualDurationMinutes)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded with the session")
	return cmd
}

func newCycleCmd(flags *globalFlags) *cobra.Command {
	cycle := &cobra.Command{Use: "cycle", Short: "Pomodoro cycle operations"}

	cycle.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Start a new cycle without archiving the current one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			app, err := loadApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			app.PomodoroCLI.ResetCycle(ctx)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cycle reset")
			return nil
		},
	})

	cycle.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Archive the current cycle and start a new one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			app, err := loadApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			out := app.PomodoroCLI.CompleteCycle(ctx)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cycle archived: %d focus sessions, started %s, history=%d\n",
				out.CompletedFocusSessions, formatTime(out.CycleStartTime), out.HistoryLength)
			return nil
		},
	})
	return cycle
}

func newSessionCmd(flags *globalFlags) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Recorded study sessions"}

	var limit int
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadSessions(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			sessions, err := app.SessionCLI.List(context.Background(), limit, status)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, s := range sessions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%d/%d min\n", s.ID, formatTime(s.StartedAt), s.SessionType, s.Status, s.ActualDuration, s.PlannedDuration)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	list.Flags().StringVar(&status, "status", "", "filter by status: active|completed|interrupted")

	var sessionID string
	show := &cobra.Command{
		Use:   "show --id <id>",
		Short: "Show one session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(sessionID) == "" {
				return fmt.Errorf("--id is required")
			}
			app, err := loadSessions(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			s, err := app.SessionCLI.Show(context.Background(), sessionID)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	show.Flags().StringVar(&sessionID, "id", "", "session id")

	active := &cobra.Command{
		Use:   "active",
		Short: "Show the active session record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadSessions(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			s, err := app.SessionCLI.Active(context.Background())
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}

	session.AddCommand(list, show, active)
	return session
}

func loadSessions(flags *globalFlags) (*bootstrap.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewSessions(cfg, logging.New(cfg.Logging, os.Stderr))
}

func printSession(out io.Writer, s sessiondto.SessionOutput) {
	_, _ = fmt.Fprintf(out, "id: %s\ntype: %s\nstatus: %s\nplanned: %d min\nactual: %d min\ninterrupted: %t\nsubject: %s\nstarted: %s\ncompleted: %s\nnotes: %s\n",
		s.ID, s.SessionType, s.Status, s.PlannedDuration, s.ActualDuration, s.WasInterrupted, s.SubjectAreaID,
		formatTime(s.StartedAt), formatTime(s.CompletedAt), s.Notes)
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session backend over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging, os.Stderr)
			app, err := bootstrap.NewSessions(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signalContext()
			defer stop()
			return serve(ctx, addr, app.SessionHTTP.Routes(), cfg.Metrics.Addr, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8750", "listen address")
	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler, metricsAddr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", ln.Addr().String()).Msg("serving sessions")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if metricsAddr != "" {
		m := metrics.NewServer(metricsAddr, logger)
		g.Go(m.Serve)
		g.Go(func() error {
			<-gctx.Done()
			return m.Close()
		})
	}
	return g.Wait()
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
