package intercept

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

func (i *Interceptor) LookupHost(ctx context.Context, host string) ([]string, error) {
	switch i.dispatch(ctx, catalog.KeyLookupHost) {
	case catalog.ResolveHost:
		return resolve(ctx, i, host, i.net.LookupHost, overrideAddrs)
	default:
		return i.net.LookupHost(ctx, host)
	}
}

func (i *Interceptor) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	switch i.dispatch(ctx, catalog.KeyLookupIPAddr) {
	case catalog.ResolveAllHosts:
		return resolve(ctx, i, host, i.net.LookupIPAddr, overrideIPAddrs)
	default:
		return i.net.LookupIPAddr(ctx, host)
	}
}

func (i *Interceptor) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch i.dispatch(ctx, catalog.KeyDialContext) {
	case catalog.Dial:
		return i.dial(ctx, network, address)
	default:
		return i.net.DialContext(ctx, network, address)
	}
}

// resolve applies the redirect policy to a host lookup:
// skipped hosts resolve for real without tracking, overridden hosts never
// reach the real resolver, everything else resolves for real and is
// recorded. Only a not-found failure is recorded; every error is returned
// as the real resolver produced it.
func resolve[T any](
	ctx context.Context,
	i *Interceptor,
	host string,
	real func(context.Context, string) ([]T, error),
	override func(context.Context, *Interceptor, string) ([]T, error),
) ([]T, error) {
	d := i.Policy().Decide(host)

	switch d.Action {
	case redirect.PassThroughUntracked:
		return real(ctx, host)
	case redirect.Substitute:
		i.logger.Debug("host lookup substituted", zap.String("host", host), zap.String("address", d.Address))
		return override(ctx, i, d.Address)
	}

	out, err := real(ctx, host)
	t := tracer.FromContext(ctx)
	if err != nil {
		if isNotFound(err) {
			t.RecordHostLookup(host, false)
		}
		return nil, err
	}
	t.RecordHostLookup(host, true)
	return out, nil
}

func overrideAddrs(ctx context.Context, i *Interceptor, addr string) ([]string, error) {
	if ip, ok := redirect.ParseIP(addr); ok {
		return []string{ip.String()}, nil
	}
	return i.net.LookupHost(ctx, addr)
}

func overrideIPAddrs(ctx context.Context, i *Interceptor, addr string) ([]net.IPAddr, error) {
	if ip, ok := redirect.ParseIP(addr); ok {
		return []net.IPAddr{{IP: net.IP(ip.AsSlice()), Zone: ip.Zone()}}, nil
	}
	return i.net.LookupIPAddr(ctx, addr)
}

func (i *Interceptor) dial(ctx context.Context, network, address string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return i.net.DialContext(ctx, network, address)
	}
	d := i.Policy().Decide(host)
	if d.Action == redirect.PassThroughUntracked {
		return i.net.DialContext(ctx, network, address)
	}

	port, err := net.LookupPort(network, portStr)
	if err != nil {
		return i.net.DialContext(ctx, network, address)
	}
	tracer.FromContext(ctx).RecordExternalContact(protocolOf(network), host, port)

	if d.Action == redirect.Substitute {
		target := net.JoinHostPort(d.Address, portStr)
		i.logger.Debug("dial substituted", zap.String("address", address), zap.String("target", target))
		return i.net.DialContext(ctx, network, target)
	}
	return i.net.DialContext(ctx, network, address)
}

func protocolOf(network string) string {
	return strings.ToUpper(strings.TrimRight(network, "46"))
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

