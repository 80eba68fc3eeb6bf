package tracer

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Tracer accumulates the feedback of exactly one execution. Subject code
// may record from several goroutines of the same execution, so the methods
// are safe for concurrent use. A nil *Tracer drops every record.
type Tracer struct {
	id       string
	observer Observer

	mu        sync.Mutex
	distances map[string]BranchDistance
	hostnames map[HostnameInfo]struct{}
	services  map[ExternalServiceInfo]struct{}
}

type Option func(*Tracer)

func WithObserver(o Observer) Option {
	return func(t *Tracer) {
		t.observer = o
	}
}

func New(executionID string, opts ...Option) *Tracer {
	t := &Tracer{id: executionID}
	for _, opt := range opts {
		opt(t)
	}
	t.clear()
	return t
}

func (t *Tracer) ExecutionID() string {
	if t == nil {
		return ""
	}
	return t.id
}

func (t *Tracer) clear() {
	t.distances = map[string]BranchDistance{}
	t.hostnames = map[HostnameInfo]struct{}{}
	t.services = map[ExternalServiceInfo]struct{}{}
}

func (t *Tracer) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.clear()
	t.mu.Unlock()
	t.notify(Event{Kind: EventReset})
}

// RecordDistance merges a distance observation for branch. Each polarity
// keeps the smallest value seen. NaN carries no information and is ignored,
// negative values are treated as covered.
func (t *Tracer) RecordDistance(branch string, toTrue, toFalse float64) {
	if t == nil || branch == "" {
		return
	}
	toTrue = sanitize(toTrue)
	toFalse = sanitize(toFalse)

	t.mu.Lock()
	cur, ok := t.distances[branch]
	if !ok {
		cur = unobserved()
	}
	next := cur
	if toTrue < next.ToTrue {
		next.ToTrue = toTrue
	}
	if toFalse < next.ToFalse {
		next.ToFalse = toFalse
	}
	improved := next != cur
	if improved {
		t.distances[branch] = next
	}
	t.mu.Unlock()

	if improved {
		t.notify(Event{Kind: EventDistance, Subject: branch})
	}
}

func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.Inf(1)
	case v < 0:
		return 0
	default:
		return v
	}
}

func (t *Tracer) RecordHostLookup(host string, resolved bool) {
	if t == nil {
		return
	}
	info := HostnameInfo{Host: normalizeHost(host), Resolved: resolved}
	if info.Host == "" {
		return
	}

	t.mu.Lock()
	_, seen := t.hostnames[info]
	t.hostnames[info] = struct{}{}
	t.mu.Unlock()

	if !seen {
		t.notify(Event{Kind: EventHostLookup, Subject: info.Host, Success: resolved})
	}
}

func (t *Tracer) RecordExternalContact(protocol, host string, port int) {
	if t == nil {
		return
	}
	info := ExternalServiceInfo{
		Protocol: strings.ToUpper(strings.TrimSpace(protocol)),
		Host:     normalizeHost(host),
		Port:     port,
	}
	if info.Host == "" {
		return
	}

	t.mu.Lock()
	_, seen := t.services[info]
	t.services[info] = struct{}{}
	t.mu.Unlock()

	if !seen {
		t.notify(Event{Kind: EventExternalContact, Subject: info.Host, Success: true})
	}
}

func (t *Tracer) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{Distances: map[string]BranchDistance{}}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		ExecutionID:      t.id,
		Distances:        make(map[string]BranchDistance, len(t.distances)),
		Hostnames:        make([]HostnameInfo, 0, len(t.hostnames)),
		ExternalServices: make([]ExternalServiceInfo, 0, len(t.services)),
	}
	for k, v := range t.distances {
		s.Distances[k] = v
	}
	for h := range t.hostnames {
		s.Hostnames = append(s.Hostnames, h)
	}
	for e := range t.services {
		s.ExternalServices = append(s.ExternalServices, e)
	}

	sort.Slice(s.Hostnames, func(i, j int) bool {
		a, b := s.Hostnames[i], s.Hostnames[j]
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return !a.Resolved && b.Resolved
	})
	sort.Slice(s.ExternalServices, func(i, j int) bool {
		a, b := s.ExternalServices[i], s.ExternalServices[j]
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		return a.Protocol < b.Protocol
	})
	return s
}

func (t *Tracer) notify(ev Event) {
	if t.observer == nil {
		return
	}
	ev.ExecutionID = t.id
	t.observer.ObserveRecord(ev)
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	return strings.TrimSuffix(host, ".")
}
