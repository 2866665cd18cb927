package controller

import (
	"bufio"
	"context"

	"ai-ragchat-be/internal/dto"
	"ai-ragchat-be/internal/pkg/serverutils"
	"ai-ragchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Stream(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatStreamService
}

func NewChatController(service service.IChatStreamService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat")
	h.Use(auth)
	h.Post("/stream", c.Stream)
	h.Post("", c.Send)
}

func (c *chatController) parse(ctx *fiber.Ctx) (*service.Turn, error) {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return c.service.Prepare(ctx.UserContext(), serverutils.UserID(ctx), &req)
}

// Stream answers with server-sent events. The body writer runs after the
// handler returns, so everything it needs is resolved up front.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	turn, err := c.parse(ctx)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		_ = c.service.Stream(context.Background(), turn, w)
	}))
	return nil
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	turn, err := c.parse(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Complete(ctx.UserContext(), turn)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
