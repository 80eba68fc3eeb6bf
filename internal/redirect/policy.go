package redirect

import (
	"fmt"
	"net/netip"
	"strings"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
)

type Action string

const (
	PassThroughUntracked Action = "pass_through_untracked"
	PassThroughTracked   Action = "pass_through_tracked"
	Substitute           Action = "substitute"
)

type Decision struct {
	Action  Action `json:"action"`
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason"`
}

const (
	ReasonBuiltinSkip = "builtin_skip"
	ReasonSkipList    = "skip_list"
	ReasonOverride    = "override"
	ReasonRule        = "rule"
	ReasonRuleError   = "rule_error"
	ReasonDefault     = "default"
)

type Config struct {
	SkipHosts []string
	Overrides map[string]string
	Rules     *rules.Graph
}

// Policy is immutable once built and safe for concurrent use.
type Policy struct {
	skip      map[string]struct{}
	overrides map[string]string
	graph     *rules.Graph
	engine    *rules.Engine
	logger    *zap.Logger
}

func NewPolicy(cfg Config) (*Policy, error) {
	p := &Policy{
		skip:      make(map[string]struct{}, len(cfg.SkipHosts)),
		overrides: make(map[string]string, len(cfg.Overrides)),
		graph:     cfg.Rules,
		engine:    rules.NewEngine(),
		logger:    zap.NewNop(),
	}
	for _, h := range cfg.SkipHosts {
		h = NormalizeHost(h)
		if h == "" {
			continue
		}
		p.skip[h] = struct{}{}
	}
	for h, addr := range cfg.Overrides {
		h = NormalizeHost(h)
		addr = strings.TrimSpace(addr)
		if h == "" {
			return nil, fmt.Errorf("override with empty host")
		}
		if addr == "" {
			return nil, fmt.Errorf("override for %q has empty address", h)
		}
		p.overrides[h] = addr
	}
	return p, nil
}

// MustPolicy is NewPolicy for static configuration known to be valid.
func MustPolicy(cfg Config) *Policy {
	p, err := NewPolicy(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) WithEngine(e *rules.Engine) *Policy {
	cp := *p
	cp.engine = e
	return &cp
}

// WithLogger returns a copy of p that reports rule failures to l.
func (p *Policy) WithLogger(l *zap.Logger) *Policy {
	cp := *p
	if l != nil {
		cp.logger = l
	}
	return &cp
}

// Decide is a pure function of host and the policy's configuration. It
// always yields a decision: a rule graph that fails to evaluate falls back
// to tracked pass-through.
func (p *Policy) Decide(host string) Decision {
	h := NormalizeHost(host)
	if builtinSkip(h) {
		return Decision{Action: PassThroughUntracked, Reason: ReasonBuiltinSkip}
	}
	if p == nil {
		return Decision{Action: PassThroughTracked, Reason: ReasonDefault}
	}
	if _, ok := p.skip[h]; ok {
		return Decision{Action: PassThroughUntracked, Reason: ReasonSkipList}
	}
	if addr, ok := p.overrides[h]; ok {
		return Decision{Action: Substitute, Address: addr, Reason: ReasonOverride}
	}
	if p.graph != nil {
		out, err := p.engine.Decide(p.graph, rules.Vars(h, false, false))
		if err != nil {
			p.logger.Warn("redirect rules failed, passing through", zap.String("host", h), zap.Error(err))
			return Decision{Action: PassThroughTracked, Reason: ReasonRuleError}
		}
		if d, ok := fromOutcome(out); ok {
			return d
		}
	}
	return Decision{Action: PassThroughTracked, Reason: ReasonDefault}
}

// IsSkipped reports whether lookups of host bypass tracking entirely.
func (p *Policy) IsSkipped(host string) bool {
	h := NormalizeHost(host)
	if builtinSkip(h) {
		return true
	}
	if p == nil {
		return false
	}
	_, ok := p.skip[h]
	return ok
}

func (p *Policy) Overrides() map[string]string {
	out := make(map[string]string)
	if p == nil {
		return out
	}
	for k, v := range p.overrides {
		out[k] = v
	}
	return out
}

func (p *Policy) SkipHosts() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.skip))
	for h := range p.skip {
		out = append(out, h)
	}
	return out
}

func fromOutcome(o rules.Outcome) (Decision, bool) {
	switch o.Action {
	case rules.ActionSkip:
		return Decision{Action: PassThroughUntracked, Reason: ReasonRule}, true
	case rules.ActionTrack:
		return Decision{Action: PassThroughTracked, Reason: ReasonRule}, true
	case rules.ActionSubstitute:
		return Decision{Action: Substitute, Address: o.Address, Reason: ReasonRule}, true
	}
	return Decision{}, false
}

// FromOutcome converts a rule outcome into a decision. Rules that assign
// no action fall back to tracked pass-through.
func FromOutcome(o rules.Outcome) Decision {
	if d, ok := fromOutcome(o); ok {
		return d
	}
	return Decision{Action: PassThroughTracked, Reason: ReasonDefault}
}

func builtinSkip(h string) bool {
	if h == "" || h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	_, numeric := ParseIP(h)
	return numeric
}

// ParseIP reports whether h is an IP literal, with or without brackets.
func ParseIP(h string) (netip.Addr, bool) {
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	addr, err := netip.ParseAddr(h)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

func NormalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
