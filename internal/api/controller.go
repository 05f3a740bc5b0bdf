// Package api exposes the offline cache controller over HTTP: the request
// interception gateway, the page messaging protocol, background-sync and
// push intake, and an SSE stream of outbound controller events.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
	"github.com/Abdallaheslam/ostaz-edge/internal/offline"
)

const (
	// passthroughTimeout bounds requests forwarded untouched to their
	// origin.
	passthroughTimeout = 60 * time.Second
	// heartbeatInterval keeps idle SSE connections alive.
	heartbeatInterval = 30 * time.Second
)

// Controller registers and serves the HTTP surface.
type Controller struct {
	ctrl    *offline.Controller
	fetcher *offline.HTTPFetcher
	events  *EventStream
	forward *http.Client
	log     logger.Logger
}

// NewController creates the API controller and registers its routes.
func NewController(e *echo.Echo, ctrl *offline.Controller, fetcher *offline.HTTPFetcher, events *EventStream, log logger.Logger) *Controller {
	c := &Controller{
		ctrl:    ctrl,
		fetcher: fetcher,
		events:  events,
		forward: &http.Client{Timeout: passthroughTimeout},
		log:     log,
	}

	e.POST("/sw/message", c.Message)
	e.POST("/sw/sync/:tag", c.Sync)
	e.POST("/sw/push", c.Push)
	e.GET("/sw/events", c.Events)
	// The interception surface: every remaining request flows through
	// classification and the strategy engine.
	e.Any("/*", c.Gateway)

	return c
}

// Message handles one page → controller protocol message.
func (c *Controller) Message(ctx echo.Context) error {
	var msg offline.Message
	if err := ctx.Bind(&msg); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message body"})
	}
	if msg.Type == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "message type is required"})
	}

	reply := c.ctrl.HandleMessage(ctx.Request().Context(), msg)
	return ctx.JSON(http.StatusOK, reply)
}

// Sync handles a background-sync signal for the given tag.
func (c *Controller) Sync(ctx echo.Context) error {
	tag := ctx.Param("tag")
	if err := c.ctrl.HandleSync(ctx.Request().Context(), tag); err != nil {
		c.log.Error("background sync failed",
			logger.String("tag", tag),
			logger.Error(err))
		status := http.StatusInternalServerError
		if tag != offline.TagSyncOrders && tag != offline.TagSyncCart {
			status = http.StatusBadRequest
		}
		return ctx.JSON(status, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok", "tag": tag})
}

// Push accepts a push payload and always produces a notification.
func (c *Controller) Push(ctx echo.Context) error {
	body, err := readBody(ctx.Request())
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read payload"})
	}
	payload := c.ctrl.HandlePush(ctx.Request().Context(), body)
	return ctx.JSON(http.StatusOK, payload)
}
