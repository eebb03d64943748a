// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

const (
	maxResponseBody = 1 << 20

	contentTypeJSON = "application/json"
	contentTypeSOAP = "text/xml; charset=utf-8"
	contentTypeAtom = "application/atom+xml"
)

// newHTTPClient returns a client with a whole-request timeout. TVs serve
// self-signed certificates, so insecureTLS disables verification for the
// brands that need HTTPS.
func newHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 2
	transport.IdleConnTimeout = 30 * time.Second
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- TVs use self-signed certificates
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// request is one HTTP exchange with a TV.
type request struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	header      map[string]string
}

// do performs req and returns the response body. Transport failures come
// back as *NetworkError and non-2xx replies as *ProtocolError.
func do(ctx context.Context, client *http.Client, req request) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.op, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewNetworkError(req.op, httpReq.URL.Host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperrors.NewNetworkError(req.op, httpReq.URL.Host, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, apperrors.NewProtocolError(req.op, httpReq.URL.Host, resp.StatusCode)
	}
	return data, nil
}

// soapEnvelope wraps an action body in the SOAP 1.1 envelope TVs expect.
func soapEnvelope(action string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` + "\n")
	b.WriteString("<s:Body>\n")
	b.WriteString(action)
	b.WriteString("\n</s:Body>\n</s:Envelope>")
	return []byte(b.String())
}

// xmlText escapes s for use as XML character data.
func xmlText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// fallbackRoute sends through a primary transport and switches to a
// secondary one when the primary fails in a way accept reports as
// retryable. A circuit breaker tracks the primary: once it opens, the
// secondary becomes the only request sent until the breaker half-opens.
type fallbackRoute struct {
	protocol string
	breaker  *gobreaker.CircuitBreaker
	accept   func(error) bool
}

func newFallbackRoute(protocol string, accept func(error) bool) *fallbackRoute {
	r := &fallbackRoute{protocol: protocol, accept: accept}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        protocol + " primary",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		// Only failures that would trigger the fallback count against the primary.
		IsSuccessful: func(err error) bool {
			return err == nil || !accept(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Transport breaker state changed")
		},
	})
	return r
}

// send runs primary, or secondary when primary fails retryably or the
// breaker is open. Exactly one of them reaches the TV unless the primary
// fails first.
func (r *fallbackRoute) send(primary, secondary func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, primary()
	})
	if err == nil {
		return nil
	}

	open := errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
	if !open && !r.accept(err) {
		return err
	}

	metrics.FallbackRequestsTotal.WithLabelValues(r.protocol).Inc()
	logger.Debug().
		Err(err).
		Str("protocol", r.protocol).
		Bool("breaker_open", open).
		Msg("Using fallback transport")

	if fbErr := secondary(); fbErr != nil {
		if open {
			return fbErr
		}
		return fmt.Errorf("%w (fallback: %v)", err, fbErr)
	}
	return nil
}

// state reports the breaker state, for logs and tests.
func (r *fallbackRoute) state() gobreaker.State {
	return r.breaker.State()
}
