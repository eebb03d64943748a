// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

// ProbeTCPPort reports whether a TCP connection to ip:port completes within
// timeout. The connection is closed immediately. Refusal, unreachable hosts
// and timeouts all yield false.
func ProbeTCPPort(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		metrics.PortProbesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return false
	}
	_ = conn.Close()
	metrics.PortProbesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return true
}

// LocalIPv4Address returns the first non-loopback IPv4 address of an
// interface that is up.
func LocalIPv4Address() (string, bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String(), true
			}
		}
	}
	return "", false
}
