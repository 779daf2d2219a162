// Package httpclient builds the shared HTTP client used by every scan and
// fuzz task. The client carries connection-pool configuration only; per
// request deadlines are enforced by the dispatcher through contexts.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

type ClientConfig struct {
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
}

func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:         10 * time.Second,
		FollowRedirects: false,
		MaxRedirects:    5,
	}
}

// NewClient creates the scanner HTTP client. Redirects are not followed by
// default: a 302 to a login page is itself an authorization signal and
// must be observed, not chased.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, network, addr)
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	return client
}

// DoWithContext performs an HTTP request bound to ctx, distinguishing
// context cancellation from transport failures.
func DoWithContext(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, err
	}

	return resp, nil
}

// CloseBody drains and closes a response body. Unclosed bodies leak pooled
// connections; draining keeps the connection reusable.
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
