package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
	"github.com/Abdallaheslam/ostaz-edge/internal/offline"
)

// maxPassthroughBody caps buffered pass-through request bodies.
const maxPassthroughBody = 20 << 20 // 20 MiB

// Gateway is the interception surface. Classified requests go through the
// strategy engine; pass-through traffic (non-GET, backend service calls)
// is forwarded to its origin untouched.
func (c *Controller) Gateway(ctx echo.Context) error {
	r := ctx.Request()
	class := c.ctrl.Classifier().Classify(r)

	if class == offline.ClassPassThrough {
		return c.passThrough(ctx)
	}

	res := c.ctrl.Engine().Handle(r.Context(), r, class)
	return writeResult(ctx, res)
}

// writeResult copies a strategy result onto the wire.
func writeResult(ctx echo.Context, res *offline.Result) error {
	header := ctx.Response().Header()
	for k, vs := range res.Header {
		if k == "Content-Length" || k == "Transfer-Encoding" || k == "Connection" {
			continue
		}
		header[k] = vs
	}

	contentType := res.ContentType()
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Blob(res.Status, contentType, res.Body)
}

// passThrough forwards a request to its origin without touching any cache.
// Transport failures surface as 502; the offline fallbacks in the strategy
// engine deliberately do not apply here.
func (c *Controller) passThrough(ctx echo.Context) error {
	r := ctx.Request()

	target := r.URL.String()
	if r.URL.Host == "" {
		target = c.fetcher.Resolve(r.URL.RequestURI())
	}

	var body io.Reader = http.NoBody
	if r.Body != nil {
		body = io.LimitReader(r.Body, maxPassthroughBody)
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "invalid upstream request"})
	}
	copyHeader(req.Header, r.Header)

	resp, err := c.forward.Do(req)
	if err != nil {
		c.log.Warn("pass-through request failed",
			logger.String("url", target),
			logger.Error(err))
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "upstream unreachable"})
	}
	defer func() { _ = resp.Body.Close() }()

	header := ctx.Response().Header()
	for k, vs := range resp.Header {
		if k == "Content-Length" || k == "Transfer-Encoding" || k == "Connection" {
			continue
		}
		header[k] = vs
	}
	ctx.Response().WriteHeader(resp.StatusCode)
	_, err = io.Copy(ctx.Response(), resp.Body)
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		if k == "Connection" || k == "Keep-Alive" || k == "Transfer-Encoding" {
			continue
		}
		dst[k] = vs
	}
}

// readBody buffers a request body, tolerating an absent one.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(r.Body, maxPassthroughBody))
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(b))), nil
}
