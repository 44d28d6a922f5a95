package controller

import (
	"errors"

	"campus-rag-be/internal/dto"
	"campus-rag-be/internal/pkg/serverutils"
	"campus-rag-be/internal/service"
	"campus-rag-be/pkg/history"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/sessions", serverutils.RequireAuth)
	h.Post("/", c.Create)
	h.Get("/", c.List)
	h.Delete("/:id", c.Delete)
	h.Patch("/:id", c.Rename)
	h.Get("/:id/history", c.History)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.Context(), serverutils.UserFromContext(ctx), &req)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrAccessDenied) {
			status = fiber.StatusForbidden
		}
		return ctx.Status(status).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	res, err := c.service.ListSessions(ctx.Context(), serverutils.UserFromContext(ctx), ctx.Query("type"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return ctx.JSON(res)
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	err := c.service.DeleteSession(ctx.Context(), serverutils.UserFromContext(ctx), ctx.Params("id"))
	if err != nil {
		if errors.Is(err, history.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Session deleted"})
}

func (c *sessionController) Rename(ctx *fiber.Ctx) error {
	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := c.service.RenameSession(ctx.Context(), serverutils.UserFromContext(ctx), ctx.Params("id"), req.Title)
	if err != nil {
		if errors.Is(err, history.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Session renamed"})
}

func (c *sessionController) History(ctx *fiber.Ctx) error {
	res, err := c.service.GetHistory(ctx.Context(), serverutils.UserFromContext(ctx), ctx.Params("id"), ctx.QueryInt("limit"))
	if err != nil {
		if errors.Is(err, history.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return ctx.JSON(res)
}
