package controller

import (
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/internal/pkg/serverutils"
	"ai-ragchat-be/internal/service"
	internalWS "ai-ragchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IRealtimeController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Latest(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
}

type realtimeController struct {
	service service.IChatStreamService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

// NewRealtimeController serves snapshot reads. hub may be nil, in which
// case the websocket endpoint is not registered.
func NewRealtimeController(service service.IChatStreamService, hub *internalWS.Hub, log logger.ILogger) IRealtimeController {
	return &realtimeController{service: service, hub: hub, logger: log}
}

func (c *realtimeController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/realtime")
	h.Get("/latest", c.Latest)
	h.Get("/cache-stats", auth, c.CacheStats)
	if c.hub != nil {
		h.Get("/ws", auth, upgradeOnly, websocket.New(c.serveWs))
	}
}

// Latest is public and returns null before the first exchange.
func (c *realtimeController) Latest(ctx *fiber.Ctx) error {
	snap, ok := c.service.Latest()
	if !ok {
		return ctx.Type("json").SendString("null")
	}
	return ctx.JSON(snap)
}

func (c *realtimeController) CacheStats(ctx *fiber.Ctx) error {
	return ctx.JSON(c.service.CacheStats())
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (c *realtimeController) serveWs(conn *websocket.Conn) {
	subject, _ := conn.Locals(serverutils.UserIDKey).(string)
	c.logger.Info("Realtime", "Viewer connected", map[string]interface{}{"subject": subject})
	internalWS.ServeWs(c.hub, conn, subject, nil)
}
