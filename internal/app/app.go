package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	"looperd/internal/eventbus"
	"looperd/internal/handlers"
	"looperd/internal/host"
	"looperd/internal/observability/debug"
	"looperd/internal/platform"
	"looperd/internal/runtime/supervisor"
	logx "looperd/pkg/logx"
)

type App struct {
	cfgPath string
	runID   string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	dev  eeprom.Device
	bank *eeprom.Bank

	runner *host.Runner
	notify handlers.Notifier
}

// Option customizes New.
type Option func(*App)

// WithNotifier replaces the systemd notifier (READY, STOPPING, WATCHDOG).
func WithNotifier(n handlers.Notifier) Option {
	return func(a *App) { a.notify = n }
}

func New(cfgPath string, opts ...Option) (*App, error) {
	a := &App{cfgPath: cfgPath, runID: uuid.NewString(), notify: handlers.SdNotify}
	for _, o := range opts {
		o(a)
	}

	a.cfgm = config.NewConfigManager(cfgPath)
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	a.logs = logSvc
	a.log = log.With(logx.String("comp", "app"))
	a.bus = eventbus.New()

	if err := a.openEEPROM(cfg, log); err != nil {
		a.logs.Close()
		return nil, err
	}
	if err := a.buildRunner(cfg, log); err != nil {
		_ = a.dev.Close()
		a.logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openEEPROM(cfg *config.Config, log logx.Logger) error {
	ec, err := mapEEPROMConfig(cfg)
	if err != nil {
		return err
	}
	layout, err := mapLayout(cfg)
	if err != nil {
		return err
	}
	elog := log.With(logx.String("comp", "eeprom"))
	dev, err := eeprom.Open(ec, elog)
	if err != nil {
		return err
	}
	bank, err := eeprom.NewBank(eeprom.NewStore(dev, platform.NewMask()), layout)
	if err != nil {
		_ = dev.Close()
		return err
	}
	reset, err := bank.Prepare()
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("eeprom prepare: %w", err)
	}
	elog.Info("eeprom ready",
		logx.String("driver", ec.Driver),
		logx.Int("size", dev.Size()),
		logx.Int("used", layout.Size),
		logx.String("version", fmt.Sprintf("%#x", layout.Version)),
		logx.Bool("reset", reset),
	)
	a.dev, a.bank = dev, bank
	return nil
}

func (a *App) buildRunner(cfg *config.Config, log logx.Logger) error {
	tick, err := cfg.Runtime.TickDuration()
	if err != nil {
		return err
	}
	idle, err := cfg.Runtime.IdleDuration()
	if err != nil {
		return err
	}
	a.runner = host.New(host.Options{
		Unit:                tick,
		Idle:                idle,
		ZeroDeltaWarnPerSec: cfg.Runtime.ZeroDeltaWarnPerSec,
		Log:                 log.With(logx.String("comp", "host")),
		Bus:                 a.bus,
	})

	notify := a.notify
	if !cfg.Systemd.Watchdog {
		notify = func(string) (bool, error) { return false, nil }
	}
	defs, err := handlers.BuildAll(handlers.Env{
		Log:     log.With(logx.String("comp", "handlers")),
		Bank:    a.bank,
		Loopers: a.runner.Inline(),
		Unit:    tick,
		Notify:  notify,
	}, cfg.Loopers)
	if err != nil {
		return err
	}
	return a.runner.Load(defs)
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Bus() eventbus.Bus { return a.bus }

// RunID identifies this process in logs and the debug endpoint.
func (a *App) RunID() string { return a.runID }

func (a *App) Bank() *eeprom.Bank { return a.bank }

// Snapshot returns the scheduler state.
func (a *App) Snapshot(ctx context.Context) (host.Snapshot, error) {
	return a.runner.Snapshot(ctx)
}

// SetEnabled toggles a looper until the next config change says otherwise.
func (a *App) SetEnabled(ctx context.Context, name string, on bool) error {
	return a.runner.SetEnabled(ctx, name, on)
}

// Reload re-reads the config file now instead of waiting for the watcher.
func (a *App) Reload(ctx context.Context) error {
	err := a.cfgm.Reload(ctx)
	if errors.Is(err, config.ErrUnchanged) {
		return nil
	}
	return err
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.ValidateReload(a.cfgm.Get(), cfg)
	})

	a.sup.Go("looper.dispatch", a.runner.Run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", supervisor.RestartPolicy{MinBackoff: time.Second, MaxBackoff: 30 * time.Second}, a.cfgm.Watch)

	cfg := a.cfgm.Get()
	if cfg.Debug.Enabled {
		// The debug server is optional; its failure never stops the app.
		srv := debug.New(
			debug.Config{Addr: cfg.Debug.Addr, Token: cfg.Debug.Token, RunID: a.runID},
			a.runner, a.bus.Dropped, a.log.With(logx.String("comp", "debug")),
		)
		a.sup.Go0("debug.http", func(c context.Context) {
			if err := srv.Serve(c); err != nil {
				a.log.Error("debug server failed", logx.Err(err))
			}
		})
	}

	if cfg.Systemd.Notify {
		a.sdNotify(daemon.SdNotifyReady)
	}
	a.log.Info("app started", logx.String("config", a.cfgPath), logx.String("run_id", a.runID))
	return nil
}

// applyConfig applies the runtime-safe parts of a reload: logging and the
// enabled flag of each looper.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, toggled := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(newCfg))

	for _, name := range toggled {
		l, _ := newCfg.Looper(name)
		if err := a.runner.SetEnabled(ctx, name, l.IsEnabled()); err != nil {
			a.log.Warn("looper toggle failed", logx.String("looper", name), logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) sdNotify(state string) {
	sent, err := a.notify(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	a.log.Debug("sd_notify", logx.String("state", state), logx.Bool("sent", sent))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if cfg := a.cfgm.Get(); cfg != nil && cfg.Systemd.Notify {
		a.sdNotify(daemon.SdNotifyStopping)
	}

	// Never extend the caller's deadline.
	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := a.sup.Stop(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("supervisor did not stop in time", logx.Any("goroutines", a.sup.Stats()))
	}

	if a.dev != nil {
		if cerr := a.dev.Close(); cerr != nil {
			a.log.Warn("eeprom close failed", logx.Err(cerr))
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
