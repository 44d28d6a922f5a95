package controller

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"campus-rag-be/internal/dto"
	"campus-rag-be/internal/pkg/serverutils"
	"campus-rag-be/internal/service"
	"campus-rag-be/pkg/history"
	"campus-rag-be/pkg/rag/pipeline"
	"campus-rag-be/pkg/rag/route"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, rateLimiter fiber.Handler)
	Chat(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, rateLimiter fiber.Handler) {
	r.Post("/chat/:tier", rateLimiter, c.Chat)
}

// Chat streams the pipeline's answer as server-sent events: one
// {"chunk": ...} event per chunk, terminated by [DONE].
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	user := serverutils.UserFromContext(ctx)
	stream, err := c.service.SendChat(ctx.Context(), ctx.Params("tier"), &req, user)
	if err != nil {
		return ctx.Status(rejectionStatus(err)).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stream.Close()
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				w.WriteString("data: [DONE]\n\n")
				w.Flush()
				return
			}
			if err != nil {
				payload, _ := json.Marshal(fiber.Map{"error": err.Error()})
				w.WriteString("data: " + string(payload) + "\n\n")
				w.Flush()
				return
			}

			payload, _ := json.Marshal(fiber.Map{"chunk": chunk})
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// Client disconnected; the pipeline persists what was sent.
				return
			}
		}
	})
	return nil
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAccessDenied):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrTierMismatch):
		return fiber.StatusConflict
	case errors.Is(err, history.ErrSessionConflict):
		return fiber.StatusConflict
	case errors.Is(err, route.ErrPolicyViolation):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrEmptyQuery):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
