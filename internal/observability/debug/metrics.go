package debug

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"looperd/internal/looper"
)

var (
	descBatches    = prometheus.NewDesc("looperd_dispatch_batches_total", "Dispatch batches that found a non-empty queue.", nil, nil)
	descExecutions = prometheus.NewDesc("looperd_executions_total", "Looper callback executions.", nil, nil)
	descZeroDelta  = prometheus.NewDesc("looperd_zero_delta_total", "Executions that re-armed with a zero delay.", nil, nil)
	descNested     = prometheus.NewDesc("looperd_nested_dispatch_total", "Ignored dispatch calls made from inside a callback.", nil, nil)
	descQueued     = prometheus.NewDesc("looperd_queue_length", "Loopers currently in the dispatch queue.", nil, nil)
	descNow        = prometheus.NewDesc("looperd_batch_tick", "Tick of the last dispatch batch.", nil, nil)
	descEnabled    = prometheus.NewDesc("looperd_looper_enabled", "1 when the looper is enabled.", []string{"looper"}, nil)
	descNextDue    = prometheus.NewDesc("looperd_looper_next_due_tick", "Tick at which the looper is next due.", []string{"looper"}, nil)
	descDropped    = prometheus.NewDesc("looperd_eventbus_dropped_total", "Events dropped because a subscriber was full.", nil, nil)
	descUp         = prometheus.NewDesc("looperd_scheduler_up", "1 when the scheduler answered the scrape.", nil, nil)
)

// collector reads a scheduler snapshot on every scrape.
type collector struct {
	ctl     Controller
	dropped func() uint64
}

func newCollector(ctl Controller, dropped func() uint64) *collector {
	return &collector{ctl: ctl, dropped: dropped}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descBatches, descExecutions, descZeroDelta, descNested, descQueued,
		descNow, descEnabled, descNextDue, descDropped, descUp,
	} {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	if c.dropped != nil {
		ch <- prometheus.MustNewConstMetric(descDropped, prometheus.CounterValue, float64(c.dropped()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := c.ctl.Snapshot(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(descUp, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(descUp, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(descBatches, prometheus.CounterValue, float64(snap.Stats.Batches))
	ch <- prometheus.MustNewConstMetric(descExecutions, prometheus.CounterValue, float64(snap.Stats.Executions))
	ch <- prometheus.MustNewConstMetric(descZeroDelta, prometheus.CounterValue, float64(snap.Stats.ZeroDelta))
	ch <- prometheus.MustNewConstMetric(descNested, prometheus.CounterValue, float64(snap.Stats.NestedDispatch))
	ch <- prometheus.MustNewConstMetric(descNow, prometheus.GaugeValue, float64(snap.Now))

	queued := 0
	for _, l := range snap.Loopers {
		on := 0.0
		if l.State == looper.Enabled {
			on = 1
		}
		if l.Position >= 0 {
			queued++
		}
		ch <- prometheus.MustNewConstMetric(descEnabled, prometheus.GaugeValue, on, l.Name)
		ch <- prometheus.MustNewConstMetric(descNextDue, prometheus.GaugeValue, float64(l.NextDue), l.Name)
	}
	ch <- prometheus.MustNewConstMetric(descQueued, prometheus.GaugeValue, float64(queued))
}
