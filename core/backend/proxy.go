package backend

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
)

// parseTrustedProxies parses CIDRs like "10.0.0.0/8". A plain address is taken
// as a single host.
func parseTrustedProxies(proxies []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, proxy := range proxies {
		if proxy == "" {
			continue
		}
		if ip := net.ParseIP(proxy); ip != nil {
			bits := 8 * len(ip.To16())
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", proxy, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

func (b *Backend) isTrustedProxy(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, ipNet := range b.trustedProxies {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// proxyHeaders applies X-Forwarded-For, X-Real-IP and friends only to requests which
// come from a trusted proxy. For everybody else the headers are ignored, so a client
// cannot pick its own address for the rate limiter.
func (b *Backend) proxyHeaders(h http.Handler) http.Handler {
	if len(b.trustedProxies) == 0 {
		return h
	}
	forwarded := handlers.ProxyHeaders(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.isTrustedProxy(r.RemoteAddr) {
			forwarded.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
