package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/BolajiAyodeji/lightning/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workOrders  *services.WorkOrders
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	workOrders *services.WorkOrders,
	store persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workOrders:  workOrders,
		persistence: store,
		validator:   validator,
	}
}

func (h *APIHandlers) CreateWorkOrder(c fiber.Ctx) error {
	var req CreateWorkOrderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.persistence.Workflows().GetByID(c.Context(), req.WorkflowID)
	if err != nil {
		return internalError(c, err)
	}

	if workflow == nil {
		return notFound(c, "Workflow not found")
	}

	serviceReq := services.CreateWorkOrderRequest{
		Workflow:   workflow,
		CreatedBy:  req.CreatedBy,
		WithoutRun: req.WithoutRun,
		Dataclip: services.DataclipInput{
			ID:   req.DataclipID,
			Body: req.DataclipBody,
		},
	}

	if req.TriggerID != "" {
		serviceReq.Trigger = workflow.TriggerByID(req.TriggerID)
		if serviceReq.Trigger == nil {
			return notFound(c, "Trigger not found")
		}
	}

	if req.JobID != "" {
		serviceReq.Job = workflow.JobByID(req.JobID)
		if serviceReq.Job == nil {
			return notFound(c, "Job not found")
		}
	}

	workOrder, err := h.workOrders.Create(c.Context(), serviceReq)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workOrder)
}

func (h *APIHandlers) GetWorkOrder(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Work order ID is required")
	}

	workOrder, err := h.workOrders.Get(c.Context(), id, persistence.Include{Runs: true, Steps: true})
	if err != nil {
		return handleServiceError(c, err)
	}

	if workOrder == nil {
		return notFound(c, "Work order not found")
	}

	return c.JSON(workOrder)
}

func (h *APIHandlers) ListWorkOrders(c fiber.Ctx) error {
	query, err := h.parseListQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	workOrders, err := h.workOrders.List(c.Context(), *query)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"work_orders": workOrders,
		"pagination": fiber.Map{
			"limit":  query.Limit,
			"offset": query.Offset,
		},
	})
}

func (h *APIHandlers) parseListQuery(c fiber.Ctx) (*persistence.WorkOrderQuery, error) {
	query := &persistence.WorkOrderQuery{
		ProjectID:  c.Query("project_id"),
		WorkflowID: c.Query("workflow_id"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		query.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		query.Offset = offset
	}

	if includeStr := c.Query("include_runs"); includeStr != "" {
		include, err := strconv.ParseBool(includeStr)
		if err != nil {
			return nil, err
		}

		query.Include.Runs = include
	}

	return query, nil
}

func (h *APIHandlers) RetryRun(c fiber.Ctx) error {
	runID := c.Params("id")
	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	var req RetryRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.workOrders.Retry(c.Context(), runID, req.StepID, services.RetryOptions{
		CreatedBy: req.CreatedBy,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) RetryWorkOrders(c fiber.Ctx) error {
	var req RetryWorkOrdersRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	count, err := h.workOrders.RetryWorkOrders(c.Context(), req.WorkOrderIDs, req.JobID, services.RetryOptions{
		CreatedBy: req.CreatedBy,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RetryResponse{SuccessCount: count})
}

func (h *APIHandlers) RetryRunSteps(c fiber.Ctx) error {
	var req RetryRunStepsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pairs := make([]services.RunStepPair, 0, len(req.Pairs))
	for _, pair := range req.Pairs {
		pairs = append(pairs, services.RunStepPair{RunID: pair.RunID, StepID: pair.StepID})
	}

	count, err := h.workOrders.RetryRunSteps(c.Context(), pairs, services.RetryOptions{
		CreatedBy: req.CreatedBy,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RetryResponse{SuccessCount: count})
}

func (h *APIHandlers) UpdateRunState(c fiber.Ctx) error {
	runID := c.Params("id")
	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	var req UpdateRunStateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workOrder, err := h.workOrders.UpdateState(c.Context(), &models.Run{
		ID:    runID,
		State: models.RunState(req.State),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workOrder)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workOrders.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Lightning API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Lightning API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
