package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// wanIPBudget bounds the whole WAN address lookup at startup. The
// lookup is informational; exceeding the budget is logged, not fatal.
const wanIPBudget = 70 * time.Second

// wanIPEndpoints are plain-text echo services tried in order.
var wanIPEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// logWANIP resolves the gateway's public address once at startup, for
// the operator's benefit only. Failure never affects serving.
func (s *Server) logWANIP(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, wanIPBudget)
	defer cancel()

	ip, err := resolveWANIP(ctx, http.DefaultClient, wanIPEndpoints)
	if err != nil {
		s.logger.Warn("WAN address lookup failed", "error", err)
		return
	}
	s.logger.Info("WAN address resolved", "ip", ip)
}

// resolveWANIP asks each echo endpoint in turn and returns the first
// well-formed address.
func resolveWANIP(ctx context.Context, client *http.Client, endpoints []string) (string, error) {
	var lastErr error
	for _, endpoint := range endpoints {
		ip, err := fetchIP(ctx, client, endpoint)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return ip, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no echo endpoints configured")
	}
	return "", lastErr
}

func fetchIP(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 128))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("%s returned %q, not an address", endpoint, ip)
	}
	return ip, nil
}
