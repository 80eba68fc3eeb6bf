package tracer

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventDistance        EventKind = "distance"
	EventHostLookup      EventKind = "host_lookup"
	EventExternalContact EventKind = "external_contact"
	EventReset           EventKind = "reset"
	EventExecutionBegin  EventKind = "execution_begin"
	EventExecutionEnd    EventKind = "execution_end"
)

type Event struct {
	ExecutionID string
	Kind        EventKind
	Subject     string
	Success     bool
}

// Observer is notified of new trace records. It is called on the
// intercepted call path, so implementations must not block.
type Observer interface {
	ObserveRecord(ev Event)
}

type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) ObserveRecord(ev Event) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("trace record",
		zap.String("execution_id", ev.ExecutionID),
		zap.String("kind", string(ev.Kind)),
		zap.String("subject", ev.Subject),
		zap.Bool("success", ev.Success),
	)
}

// AsyncObserver hands events to next on a background goroutine and drops
// them when the buffer is full.
type AsyncObserver struct {
	next    Observer
	events  chan Event
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewAsyncObserver(next Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncObserver{
		next:   next,
		events: make(chan Event, buffer),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next != nil {
				o.next.ObserveRecord(ev)
			}
		}
	}()

	return o
}

func (o *AsyncObserver) ObserveRecord(ev Event) {
	if o == nil {
		return
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
}

func (o *AsyncObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

// Close drains pending events and stops the worker.
func (o *AsyncObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

type PrometheusObserver struct {
	records    *prometheus.CounterVec
	executions *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exectracer",
			Name:      "trace_records_total",
			Help:      "New trace records by kind and outcome.",
		}, []string{"kind", "outcome"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exectracer",
			Name:      "executions_total",
			Help:      "Execution partitions opened and closed.",
		}, []string{"phase"}),
	}
	if reg == nil {
		return o, nil
	}
	if err := reg.Register(o.records); err != nil {
		return nil, err
	}
	if err := reg.Register(o.executions); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *PrometheusObserver) ObserveRecord(ev Event) {
	if o == nil {
		return
	}
	switch ev.Kind {
	case EventExecutionBegin:
		o.executions.WithLabelValues("begin").Inc()
	case EventExecutionEnd:
		o.executions.WithLabelValues("end").Inc()
	default:
		outcome := "ok"
		if !ev.Success && ev.Kind == EventHostLookup {
			outcome = "failed"
		}
		o.records.WithLabelValues(string(ev.Kind), outcome).Inc()
	}
}

// Observers fans an event out to each non-nil observer in order.
type Observers []Observer

func (obs Observers) ObserveRecord(ev Event) {
	for _, o := range obs {
		if o != nil {
			o.ObserveRecord(ev)
		}
	}
}
