package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tinkersphere/bombardier/internal/api"
	"github.com/tinkersphere/bombardier/internal/model"
)

// ServiceRegistrar defines the interface for registering target services.
type ServiceRegistrar interface {
	Register(d api.Descriptor)
}

// ServicesHandler handles HTTP requests for target service registration.
type ServicesHandler struct {
	registry  ServiceRegistrar
	validator *validator.Validate
}

// NewServicesHandler creates a new ServicesHandler with the given registry and validator.
func NewServicesHandler(registry ServiceRegistrar, v *validator.Validate) *ServicesHandler {
	return &ServicesHandler{registry: registry, validator: v}
}

// Register handles POST /api/services requests to add a target service
// descriptor. Registering an existing name replaces its descriptor.
func (h *ServicesHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterServiceRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	h.registry.Register(api.Descriptor{Name: req.Name, BaseURL: req.BaseURL, Token: req.Token})
	return c.Status(fiber.StatusCreated).Send(nil)
}
