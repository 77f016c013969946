package handlers

import (
	"fmt"
	"time"

	"looperd/internal/config"
	"looperd/internal/eeprom"
	"looperd/internal/looper"
	logx "looperd/pkg/logx"
)

const defaultEvery = time.Second

// heartbeat logs a beat.
type heartbeat struct {
	log   logx.Logger
	delay looper.Tick
	beats uint64
}

func newHeartbeat(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	every, err := durationArg(cfg, "every", defaultEvery)
	if err != nil {
		return nil, err
	}
	return &heartbeat{log: env.Log, delay: env.ticks(every)}, nil
}

func (h *heartbeat) Run() looper.Tick {
	h.beats++
	h.log.Info("beat", logx.Uint64("n", h.beats))
	return h.delay
}

// counter increments a persistent uint32 item.
type counter struct {
	log   logx.Logger
	v     eeprom.Value[uint32]
	step  uint32
	delay looper.Tick
}

func newCounter(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	name := cfg.Arg("var")
	if name == "" {
		return nil, fmt.Errorf("%w: args.var required", ErrBadArgs)
	}
	if env.Bank == nil {
		return nil, fmt.Errorf("%w: counter needs eeprom items", ErrBadArgs)
	}
	v, err := eeprom.Lookup[uint32](env.Bank, name)
	if err != nil {
		return nil, err
	}
	step, err := uintArg(cfg, "step", 1)
	if err != nil {
		return nil, err
	}
	every, err := durationArg(cfg, "every", defaultEvery)
	if err != nil {
		return nil, err
	}
	return &counter{log: env.Log, v: v, step: uint32(step), delay: env.ticks(every)}, nil
}

func (c *counter) Run() looper.Tick {
	n, err := c.v.Get()
	if err == nil {
		n += c.step
		err = c.v.Set(n)
	}
	if err != nil {
		c.log.Error("counter update failed", logx.Err(err))
		return c.delay
	}
	c.log.Debug("counter", logx.Uint64("value", uint64(n)))
	return c.delay
}

// toggle flips another looper on every run.
type toggle struct {
	log    logx.Logger
	ctl    Control
	target string
	delay  looper.Tick
}

func newToggle(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	target := cfg.Arg("target")
	if target == "" {
		return nil, fmt.Errorf("%w: args.target required", ErrBadArgs)
	}
	every, err := durationArg(cfg, "every", defaultEvery)
	if err != nil {
		return nil, err
	}
	return &toggle{log: env.Log, ctl: env.Loopers, target: target, delay: env.ticks(every)}, nil
}

func (t *toggle) Run() looper.Tick {
	on := !t.ctl.Enabled(t.target)
	var ok bool
	if on {
		ok = t.ctl.Enable(t.target)
	} else {
		ok = t.ctl.Disable(t.target)
	}
	if !ok {
		t.log.Warn("toggle target unknown", logx.String("target", t.target))
	} else {
		t.log.Debug("toggled", logx.String("target", t.target), logx.Bool("enabled", on))
	}
	return t.delay
}

// oneshot runs once per enable, then disables itself.
type oneshot struct {
	log  logx.Logger
	ctl  Control
	self string
	msg  string
}

func newOneshot(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	msg := cfg.Arg("message")
	if msg == "" {
		msg = "oneshot fired"
	}
	return &oneshot{log: env.Log, ctl: env.Loopers, self: cfg.Name, msg: msg}, nil
}

func (o *oneshot) Run() looper.Tick {
	o.log.Info(o.msg)
	o.ctl.Disable(o.self)
	return 1
}

// backoff chooses its own delay, doubling from min up to max.
type backoff struct {
	log    logx.Logger
	lo, hi looper.Tick
	cur    looper.Tick
}

func newBackoff(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	lo, err := durationArg(cfg, "min", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	hi, err := durationArg(cfg, "max", 10*time.Second)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("%w: args.max (%s) < args.min (%s)", ErrBadArgs, hi, lo)
	}
	b := &backoff{log: env.Log, lo: env.ticks(lo), hi: env.ticks(hi)}
	b.cur = b.lo
	return b, nil
}

func (b *backoff) Run() looper.Tick {
	d := b.cur
	b.cur *= 2
	if b.cur > b.hi {
		b.cur = b.hi
	}
	b.log.Debug("backoff", logx.Uint64("delay_ticks", d))
	return d
}
