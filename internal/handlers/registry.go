package handlers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	"looperd/internal/looper"
	"looperd/internal/platform"
	logx "looperd/pkg/logx"
)

var (
	ErrUnknownHandler = errors.New("unknown handler")
	ErrBadArgs        = errors.New("invalid handler args")
)

// Control toggles loopers by name from inside a callback.
type Control interface {
	Enable(name string) bool
	Disable(name string) bool
	Enabled(name string) bool
}

// Env carries what handlers may touch.
type Env struct {
	Log     logx.Logger
	Bank    *eeprom.Bank
	Loopers Control
	// Unit is the wall duration of one tick.
	Unit time.Duration
	// Now is the wall clock used for cron intervals.
	Now func() time.Time
	// Notify sends a state string to the service manager.
	Notify Notifier
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) ticks(d time.Duration) looper.Tick { return platform.DurationToTicks(d, e.Unit) }

// Factory builds the handler of one looper.
type Factory func(env Env, cfg config.LooperConfig) (looper.Handler, error)

var registry = map[string]Factory{
	"heartbeat": newHeartbeat,
	"counter":   newCounter,
	"toggle":    newToggle,
	"oneshot":   newOneshot,
	"backoff":   newBackoff,
	"watchdog":  newWatchdog,
	"script":    newScript,
}

// Names lists the built-in handler names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build turns one looper config into a definition.
func Build(env Env, cfg config.LooperConfig) (looper.Definition, error) {
	if env.Unit <= 0 {
		env.Unit = time.Millisecond
	}
	if env.Log.IsZero() {
		env.Log = logx.Nop()
	}
	f, ok := registry[strings.ToLower(strings.TrimSpace(cfg.Handler))]
	if !ok {
		return looper.Definition{}, fmt.Errorf("%w: looper %q uses %q (have %s)",
			ErrUnknownHandler, cfg.Name, cfg.Handler, strings.Join(Names(), ", "))
	}
	iv, err := config.ParseInterval(cfg.Interval)
	if err != nil {
		return looper.Definition{}, fmt.Errorf("looper %q: %w", cfg.Name, err)
	}
	delay, err := cfg.InitialDelayDuration()
	if err != nil {
		return looper.Definition{}, err
	}

	env.Log = env.Log.With(logx.String("looper", cfg.Name))
	h, err := f(env, cfg)
	if err != nil {
		return looper.Definition{}, fmt.Errorf("looper %q: %w", cfg.Name, err)
	}
	h = withInterval(env, cfg.Name, iv, h)

	env.Log.Debug("looper bound",
		logx.String("handler", cfg.Handler),
		logx.String("interval", iv.Kind.String()),
		logx.String("args", argSummary(cfg)),
	)

	initial := env.ticks(delay)
	// Cron loopers wait for their first activation unless told otherwise.
	if iv.Kind == config.IntervalCron && strings.TrimSpace(cfg.InitialDelay) == "" {
		if d, ok := iv.Delay(env.now()); ok {
			initial = env.ticks(d)
		}
	}
	return looper.Definition{
		Name:         cfg.Name,
		Enabled:      cfg.IsEnabled(),
		InitialDelay: initial,
		Handler:      h,
	}, nil
}

// BuildAll builds every looper in order.
func BuildAll(env Env, cfgs []config.LooperConfig) ([]looper.Definition, error) {
	defs := make([]looper.Definition, 0, len(cfgs))
	for _, c := range cfgs {
		d, err := Build(env, c)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func durationArg(cfg config.LooperConfig, key string, def time.Duration) (time.Duration, error) {
	raw := cfg.Arg(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: args.%s = %q (want a positive duration)", ErrBadArgs, key, raw)
	}
	return d, nil
}

func uintArg(cfg config.LooperConfig, key string, def uint64) (uint64, error) {
	raw := cfg.Arg(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: args.%s = %q", ErrBadArgs, key, raw)
	}
	return n, nil
}

func argSummary(cfg config.LooperConfig) string {
	keys := cfg.ArgKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cfg.Arg(k))
	}
	return strings.Join(parts, " ")
}
