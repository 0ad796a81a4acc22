package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/pathwayhq/pathway/pkg/activator"
	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

type APIHandlers struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	activator   *activator.Activator
	validator   *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	p persistence.Persistence,
	act *activator.Activator,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger,
		persistence: p,
		activator:   act,
		validator:   validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	var req CreateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	flow := &models.Flow{
		Name:      req.Name,
		Label:     req.Label,
		Type:      req.Type,
		Version:   req.Version,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if flow.Type == "" {
		flow.Type = models.FlowTypeManual
	}

	if err := flow.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.Definitions().Save(c.Context(), flow); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	flows, err := h.persistence.Definitions().List(c.Context())
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"definitions": flows,
		"count":       len(flows),
	})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flow name is required")
	}

	flow, err := h.persistence.Definitions().Get(c.Context(), name, c.Query("version"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(flow)
}

// ExecuteFlow starts an instance of the named flow and runs it to a terminal
// state before responding.
func (h *APIHandlers) ExecuteFlow(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flow name is required")
	}

	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	actor := req.Actor
	if actor == "" {
		actor = "api"
	}

	result, err := h.activator.StartWorkflow(c.Context(), name, req.Variables, actor)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(ExecuteResponse{
		InstanceID:   result.Instance.ID,
		Status:       result.Instance.Status,
		Success:      result.Success,
		Variables:    result.Variables,
		NodesVisited: result.NodesVisited,
		Error:        result.Error,
		DurationMs:   result.Duration.Milliseconds(),
	})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.persistence.Instances().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(instance)
}

// CancelInstance retires a pending or running instance. The engine has no
// in-flight cancellation; this updates the stored record and publishes the
// cancellation event.
func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req CancelRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	actor := req.CancelledBy
	if actor == "" {
		actor = "api"
	}

	err := h.activator.CancelInstance(c.Context(), id, req.Reason, actor)
	if err != nil {
		if errors.Is(err, activator.ErrInstanceTerminal) {
			return conflict(c, err.Error())
		}

		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	filter, err := h.parseInstanceFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	instances, err := h.persistence.Instances().Query(c.Context(), *filter)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"instances": instances,
		"count":     len(instances),
		"pagination": fiber.Map{
			"skip":  filter.Skip,
			"limit": filter.Limit,
		},
		"sorting": fiber.Map{
			"sort_by":    filter.SortBy,
			"sort_order": filter.SortOrder,
		},
	})
}

func (h *APIHandlers) parseInstanceFilter(c fiber.Ctx) (*persistence.InstanceFilter, error) {
	filter := &persistence.InstanceFilter{
		WorkflowID: c.Query("workflow_id"),
		StartedBy:  c.Query("started_by"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, models.InstanceStatus(strings.TrimSpace(s)))
		}
	}

	if skipStr := c.Query("skip"); skipStr != "" {
		skip, err := strconv.Atoi(skipStr)
		if err != nil {
			return nil, err
		}

		filter.Skip = skip
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		filter.Limit = limit
	}

	return filter, nil
}
