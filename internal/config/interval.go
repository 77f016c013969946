package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// IntervalKind describes how a looper's next delay is chosen.
type IntervalKind int

const (
	// IntervalSelf lets the handler return its own delay.
	IntervalSelf IntervalKind = iota
	// IntervalFixed re-arms after a constant duration.
	IntervalFixed
	// IntervalCron re-arms at the next cron activation.
	IntervalCron
)

func (k IntervalKind) String() string {
	switch k {
	case IntervalFixed:
		return "fixed"
	case IntervalCron:
		return "cron"
	default:
		return "self"
	}
}

// Interval is a parsed looper interval.
//
// Supported forms:
//   - "" : handler-chosen delay
//   - Duration: "500ms", "2h30m"
//   - HH:MM: "00:50" (50 minutes), "02:30"
//   - Cron: "*/5 * * * *", "0 */10 * * * *" (with seconds), "@hourly", "@every 55m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces duration parsing
type Interval struct {
	Kind   IntervalKind
	Every  time.Duration
	Cron   cron.Schedule
	Expr   string
	Source string // "self" | "duration" | "hhmm" | "cron"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseInterval parses a looper interval string.
func ParseInterval(raw string) (Interval, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Interval{Kind: IntervalSelf, Source: "self"}, nil
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseEvery(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseEvery(strings.TrimSpace(s[len("every:"):]))
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	iv, err := parseEvery(s)
	if err != nil {
		return Interval{}, fmt.Errorf(
			"invalid interval %q (use a duration like '500ms', HH:MM like '02:30', or cron like '*/5 * * * *')",
			raw,
		)
	}
	return iv, nil
}

func parseCron(expr string) (Interval, error) {
	if expr == "" {
		return Interval{}, fmt.Errorf("cron expression required after 'cron:'")
	}
	sch, err := cronParser.Parse(expr)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Interval{Kind: IntervalCron, Cron: sch, Expr: expr, Source: "cron"}, nil
}

func parseEvery(v string) (Interval, error) {
	if v == "" {
		return Interval{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return Interval{}, err
		}
		return Interval{Kind: IntervalFixed, Every: d, Expr: v, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval %q (use HH:MM or a duration like '55m')", v)
	}
	if d <= 0 {
		return Interval{}, fmt.Errorf("interval must be > 0")
	}
	return Interval{Kind: IntervalFixed, Every: d, Expr: v, Source: "duration"}, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// Delay returns how long after now the next run should happen. ok is false
// for self intervals and for cron schedules that never fire again.
func (iv Interval) Delay(now time.Time) (d time.Duration, ok bool) {
	switch iv.Kind {
	case IntervalFixed:
		return iv.Every, true
	case IntervalCron:
		if iv.Cron == nil {
			return 0, false
		}
		next := iv.Cron.Next(now)
		if next.IsZero() {
			return 0, false
		}
		return next.Sub(now), true
	default:
		return 0, false
	}
}
