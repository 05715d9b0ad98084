package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/tinkersphere/bombardier/internal/account"
	"github.com/tinkersphere/bombardier/internal/api"
	"github.com/tinkersphere/bombardier/internal/controller"
	"github.com/tinkersphere/bombardier/internal/model"
)

// TestControllerInterface defines the interface for testing flow lifecycle logic.
type TestControllerInterface interface {
	StartTestingForService(ctx context.Context, params model.TestParameters) error
	GetTestingFlowForService(name string) (model.FlowSnapshot, error)
	StopTestByServiceName(ctx context.Context, name string) error
	StopAllTests(ctx context.Context) error
}

// TestsHandler handles HTTP requests for the testing flow lifecycle.
type TestsHandler struct {
	controller TestControllerInterface
	validator  *validator.Validate
}

// NewTestsHandler creates a new TestsHandler with the given controller and validator.
func NewTestsHandler(ctrl TestControllerInterface, v *validator.Validate) *TestsHandler {
	return &TestsHandler{controller: ctrl, validator: v}
}

// formatValidationError converts validator errors to stable API messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "ServiceName", "Name":
				if tag == "required" {
					return "invalid request: service name is required"
				}
				if tag == "notblank" {
					return "invalid request: service name cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: service name exceeds maximum length of 255"
				}
				return "invalid request: service name is invalid"
			case "NumberOfUsers":
				return "invalid request: number_of_users must be at least 1"
			case "NumberOfTests":
				return "invalid request: number_of_tests must be at least 1"
			case "RatePerSecond":
				return "invalid request: rate_per_second must be at least 1"
			case "BaseURL":
				if tag == "required" {
					return "invalid request: base_url is required"
				}
				return "invalid request: base_url must be a valid URL"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// Start handles POST /api/tests/start requests to launch a testing flow.
func (h *TestsHandler) Start(c *fiber.Ctx) error {
	var params model.TestParameters

	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	if err := h.controller.StartTestingForService(c.Context(), params); err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "testing already running for service"})
		}
		if errors.Is(err, api.ErrServiceNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "service not registered"})
		}
		if errors.Is(err, account.ErrNoUsersForService) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not create users on target service"})
		}
		log.Error().Err(err).Str("service", params.ServiceName).Msg("failed to start testing flow")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"service_name": params.ServiceName})
}

// Get handles GET /api/tests/:service requests to report flow progress.
func (h *TestsHandler) Get(c *fiber.Ctx) error {
	service := c.Params("service")
	if service == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: service name is required",
		})
	}

	snapshot, err := h.controller.GetTestingFlowForService(service)
	if err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no testing flow for service"})
		}
		log.Error().Err(err).Str("service", service).Msg("failed to read testing flow")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(snapshot)
}

// Stop handles POST /api/tests/:service/stop requests to cancel a flow.
func (h *TestsHandler) Stop(c *fiber.Ctx) error {
	service := c.Params("service")
	if service == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: service name is required",
		})
	}

	if err := h.controller.StopTestByServiceName(c.Context(), service); err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no testing flow for service"})
		}
		log.Error().Err(err).Str("service", service).Msg("failed to stop testing flow")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"service_name": service})
}

// StopAll handles POST /api/tests/stop-all requests to cancel every flow.
func (h *TestsHandler) StopAll(c *fiber.Ctx) error {
	if err := h.controller.StopAllTests(c.Context()); err != nil {
		log.Error().Err(err).Msg("failed to stop testing flows")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).Send(nil)
}
