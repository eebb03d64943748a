// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/ipv4"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
)

// SSDP multicast group.
const (
	SSDPAddress = "239.255.255.250"
	SSDPPort    = 1900

	ssdpMX            = 3
	ssdpMulticastTTL  = 2
	ssdpReadBufferLen = 4096
)

// BuildMSearch returns the M-SEARCH datagram for a search target.
func BuildMSearch(searchTarget string) []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + SSDPAddress + ":" + strconv.Itoa(SSDPPort) + "\r\n")
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	b.WriteString("MX: " + strconv.Itoa(ssdpMX) + "\r\n")
	b.WriteString("ST: " + searchTarget + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// MulticastSearch sends one M-SEARCH for searchTarget from an ephemeral UDP
// socket and collects replies until timeout elapses or ctx is done. Running
// out of time is the normal way the search ends and is not an error; only a
// failure to set up or send on the socket is returned.
func MulticastSearch(ctx context.Context, searchTarget string, timeout time.Duration) ([]SSDPResponse, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, apperrors.NewNetworkError("listen", "", err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if ttlErr := pc.SetMulticastTTL(ssdpMulticastTTL); ttlErr != nil {
		logger.Debug().Err(ttlErr).Msg("Could not set SSDP multicast TTL")
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, apperrors.NewNetworkError("set deadline", "", err)
	}

	// Cancelling ctx unblocks the read loop by pulling the deadline in.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	dst := &net.UDPAddr{IP: net.ParseIP(SSDPAddress), Port: SSDPPort}
	if _, err := conn.WriteTo(BuildMSearch(searchTarget), dst); err != nil {
		return nil, apperrors.NewNetworkError("M-SEARCH", dst.String(), err)
	}

	var results []SSDPResponse
	buf := make([]byte, ssdpReadBufferLen)
	for {
		n, addr, readErr := conn.ReadFrom(buf)
		if readErr != nil {
			var netErr net.Error
			if !(errors.As(readErr, &netErr) && netErr.Timeout()) && ctx.Err() == nil {
				logger.Debug().Err(readErr).Str("search_target", searchTarget).Msg("SSDP read ended")
			}
			break
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok || udpAddr.IP.To4() == nil {
			continue
		}

		results = append(results, ParseSSDPResponse(string(buf[:n]), udpAddr.IP.String()))
	}

	logger.Debug().
		Str("search_target", searchTarget).
		Int("responses", len(results)).
		Msg("M-SEARCH finished")

	return results, nil
}

// ParseSSDPResponse parses an HTTP-style SSDP header block. Header names are
// matched case-insensitively; absent headers become empty strings. The IP is
// taken from the packet source, never from the payload.
func ParseSSDPResponse(payload, ip string) SSDPResponse {
	headers := make(map[string]string)

	normalized := strings.ReplaceAll(payload, "\r\n", "\n")
	for _, line := range strings.Split(normalized, "\n") {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		headers[key] = value
	}

	return SSDPResponse{
		Location:     headers["location"],
		Server:       headers["server"],
		SearchTarget: headers["st"],
		USN:          headers["usn"],
		IP:           ip,
	}
}

// String renders the response for logs.
func (r SSDPResponse) String() string {
	return fmt.Sprintf("%s server=%q st=%q", r.IP, r.Server, r.SearchTarget)
}
