package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"looperd/internal/config"
	"looperd/internal/looper"
	logx "looperd/pkg/logx"
)

var errScriptTimeout = errors.New("script timed out")

// script calls the JavaScript function run() on every activation. The VM
// lives as long as the looper, so globals carry state between runs.
//
// run() may return a number (milliseconds) or a duration string; anything
// else re-arms after args.every.
type script struct {
	env     Env
	log     logx.Logger
	vm      *goja.Runtime
	run     goja.Callable
	every   looper.Tick
	timeout time.Duration
}

func newScript(env Env, cfg config.LooperConfig) (looper.Handler, error) {
	src := cfg.Arg("source")
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: args.source required", ErrBadArgs)
	}
	every, err := durationArg(cfg, "every", defaultEvery)
	if err != nil {
		return nil, err
	}
	timeout, err := durationArg(cfg, "timeout", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	ctl := env.Loopers
	if ctl == nil {
		ctl = nopControl{}
	}

	s := &script{env: env, log: env.Log, vm: goja.New(), every: env.ticks(every), timeout: timeout}
	globals := map[string]any{
		"self": cfg.Name,
		"looper": map[string]any{
			"enable":  ctl.Enable,
			"disable": ctl.Disable,
			"enabled": ctl.Enabled,
		},
		"log": func(msg string) { s.log.Info(msg, logx.String("source", "script")) },
		"now": func() int64 { return env.now().UnixMilli() },
	}
	for k, v := range globals {
		if err := s.vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("script global %s: %w", k, err)
		}
	}
	if _, err := s.vm.RunString(src); err != nil {
		return nil, fmt.Errorf("%w: args.source: %v", ErrBadArgs, err)
	}
	run, ok := goja.AssertFunction(s.vm.Get("run"))
	if !ok {
		return nil, fmt.Errorf("%w: args.source must define function run()", ErrBadArgs)
	}
	s.run = run
	return s, nil
}

func (s *script) Run() looper.Tick {
	fired := make(chan struct{})
	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt(errScriptTimeout)
		close(fired)
	})
	v, err := s.run(goja.Undefined())
	if !timer.Stop() {
		<-fired
	}
	s.vm.ClearInterrupt()
	if err != nil {
		s.log.Error("script run failed", logx.Err(err))
		return s.every
	}
	return s.delay(v)
}

func (s *script) delay(v goja.Value) looper.Tick {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return s.every
	}
	var d time.Duration
	switch x := v.Export().(type) {
	case int64:
		d = time.Duration(x) * time.Millisecond
	case float64:
		d = time.Duration(x * float64(time.Millisecond))
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(x))
		if err != nil {
			s.log.Warn("script returned a bad duration", logx.String("value", x))
			return s.every
		}
		d = parsed
	default:
		s.log.Warn("script returned an unsupported value", logx.String("value", v.String()))
		return s.every
	}
	if d < 0 {
		d = 0
	}
	return s.env.ticks(d)
}

type nopControl struct{}

func (nopControl) Enable(string) bool  { return false }
func (nopControl) Disable(string) bool { return false }
func (nopControl) Enabled(string) bool { return false }
