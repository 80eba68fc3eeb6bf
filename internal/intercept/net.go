package intercept

import (
	"context"
	"net"
)

// Net performs the real network operations the replacements fall back to.
type Net interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// HostResolver is the subset of *net.Resolver the subject calls through.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type SystemNet struct {
	Resolver *net.Resolver
	Dialer   *net.Dialer
}

func NewSystemNet() *SystemNet {
	return &SystemNet{Resolver: net.DefaultResolver, Dialer: &net.Dialer{}}
}

func (s *SystemNet) LookupHost(ctx context.Context, host string) ([]string, error) {
	return s.resolver().LookupHost(ctx, host)
}

func (s *SystemNet) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return s.resolver().LookupIPAddr(ctx, host)
}

func (s *SystemNet) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d := s.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	return d.DialContext(ctx, network, address)
}

func (s *SystemNet) resolver() *net.Resolver {
	if s.Resolver == nil {
		return net.DefaultResolver
	}
	return s.Resolver
}
