package handlers

import (
	"looperd/internal/config"
	"looperd/internal/looper"
	logx "looperd/pkg/logx"
)

// withInterval makes h return the configured delay instead of its own.
func withInterval(env Env, name string, iv config.Interval, h looper.Handler) looper.Handler {
	switch iv.Kind {
	case config.IntervalFixed:
		delta := env.ticks(iv.Every)
		return looper.HandlerFunc(func() looper.Tick {
			h.Run()
			return delta
		})
	case config.IntervalCron:
		return looper.HandlerFunc(func() looper.Tick {
			h.Run()
			d, ok := iv.Delay(env.now())
			if !ok {
				env.Log.Warn("cron schedule has no further activations; disabling", logx.String("cron", iv.Expr))
				env.Loopers.Disable(name)
				return 1
			}
			return env.ticks(d)
		})
	default:
		return h
	}
}
