package handlers

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"looperd/internal/config"
	"looperd/internal/looper"
	logx "looperd/pkg/logx"
)

// Notifier sends a state string (READY=1, WATCHDOG=1, ...) to the service
// manager. sent is false when no manager is listening.
type Notifier func(state string) (sent bool, err error)

// SdNotify talks to systemd through NOTIFY_SOCKET.
func SdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

// watchdog pings the systemd watchdog at half its timeout.
type watchdog struct {
	log    logx.Logger
	notify Notifier
	delay  looper.Tick
	warned bool
}

func newWatchdog(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	every, err := durationArg(cfg, "every", 0)
	if err != nil {
		return nil, err
	}
	if every == 0 {
		every = defaultEvery
		if wd, err := daemon.SdWatchdogEnabled(false); err == nil && wd > 0 {
			every = wd / 2
		}
	}
	notify := env.Notify
	if notify == nil {
		notify = SdNotify
	}
	env.Log.Debug("watchdog configured", logx.Duration("every", every))
	return &watchdog{log: env.Log, notify: notify, delay: env.ticks(every)}, nil
}

func (w *watchdog) Run() looper.Tick {
	sent, err := w.notify(daemon.SdNotifyWatchdog)
	switch {
	case err != nil:
		w.log.Warn("watchdog ping failed", logx.Err(err))
	case !sent && !w.warned:
		w.warned = true
		w.log.Debug("watchdog ping not delivered (no NOTIFY_SOCKET)")
	}
	return w.delay
}
