package httputil

import (
	"context"
	"net/url"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/metrics"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// InstallLogging registers interceptors that log every attempt. The returned
// func unregisters all of them.
func InstallLogging(c *Client, log *logger.Logger) func() {
	offReq := c.UseRequest(func(ctx context.Context, req *Request) *Request {
		log.WithContext(ctx).WithFields(map[string]interface{}{
			"method":     req.Method,
			"url":        req.URL,
			"attempt":    req.Attempt,
			"request_id": req.Headers[HeaderRequestID],
		}).Debug("api request")
		return req
	})
	offResp := c.UseResponse(func(ctx context.Context, resp *Response) {
		entry := log.WithContext(ctx).WithFields(map[string]interface{}{
			"method":      resp.Request.Method,
			"url":         resp.Request.URL,
			"status":      resp.StatusCode,
			"duration_ms": resp.Duration.Milliseconds(),
			"request_id":  resp.Request.Headers[HeaderRequestID],
		})
		if resp.StatusCode >= 400 {
			entry.Warn("api response")
			return
		}
		entry.Debug("api response")
	})
	offErr := c.UseError(func(ctx context.Context, req *Request, err error) {
		log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"method":     req.Method,
			"url":        req.URL,
			"attempt":    req.Attempt,
			"request_id": req.Headers[HeaderRequestID],
		}).Warn("api request failed")
	})
	return func() {
		offReq()
		offResp()
		offErr()
	}
}

// InstallMetrics registers interceptors feeding the client Prometheus
// collectors.
func InstallMetrics(c *Client) func() {
	offReq := c.UseRequest(func(_ context.Context, req *Request) *Request {
		if req.Attempt > 1 {
			metrics.RecordClientRetry(req.Method, endpointOf(req.URL))
		}
		return req
	})
	offResp := c.UseResponse(func(_ context.Context, resp *Response) {
		metrics.RecordClientAttempt(resp.Request.Method, endpointOf(resp.Request.URL), resp.StatusCode, resp.Duration)
	})
	offErr := c.UseError(func(_ context.Context, req *Request, _ error) {
		metrics.RecordClientAttempt(req.Method, endpointOf(req.URL), 0, 0)
	})
	return func() {
		offReq()
		offResp()
		offErr()
	}
}

// InstallHooks registers a start hook run before every attempt and a done
// hook run after it, whether or not a response arrived.
func InstallHooks(c *Client, start func(), done func()) func() {
	offReq := c.UseRequest(func(_ context.Context, req *Request) *Request {
		start()
		return req
	})
	offResp := c.UseResponse(func(context.Context, *Response) { done() })
	offErr := c.UseError(func(context.Context, *Request, error) { done() })
	return func() {
		offReq()
		offResp()
		offErr()
	}
}

func endpointOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
