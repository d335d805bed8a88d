package web

import (
	"net/http"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflows  *services.Workflows
	evaluation *services.Evaluation
	sessions   *services.Sessions
	health     *services.Health
}

func NewAPIHandlers(
	workflows *services.Workflows,
	evaluation *services.Evaluation,
	sessions *services.Sessions,
	health *services.Health,
) *APIHandlers {
	return &APIHandlers{
		workflows:  workflows,
		evaluation: evaluation,
		sessions:   sessions,
		health:     health,
	}
}

// DetectError grades one attempt of a session. Identical requests are served from the cache
// until the session changes.
func (h *APIHandlers) DetectError(c fiber.Ctx) error {
	var req catalog.GradeInput
	if err := xjson.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	resp, err := h.evaluation.Grade(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	if resp.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}

	return c.JSON(resp)
}

func (h *APIHandlers) start(c fiber.Ctx, kind string) error {
	id, err := h.workflows.Start(c.Context(), kind, c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartWorkflowResponse{WorkflowID: id, Kind: kind})
}

func (h *APIHandlers) StartDetection(c fiber.Ctx) error {
	return h.start(c, catalog.KindDetectError)
}

func (h *APIHandlers) StartMonitor(c fiber.Ctx) error {
	return h.start(c, catalog.KindErrorMonitoring)
}

func (h *APIHandlers) ListActive(c fiber.Ctx) error {
	active, err := h.workflows.ListActive(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListActiveResponse{Workflows: active, Count: len(active)})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	view, err := h.workflows.Query(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) GetResult(c fiber.Ctx) error {
	raw, err := h.workflows.Result(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(raw)
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	history, err := h.workflows.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": c.Params("id"),
		"history":     history,
	})
}

func (h *APIHandlers) GetErrors(c fiber.Ctx) error {
	id := c.Params("id")

	logs, hit, err := h.workflows.ErrorLogs(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ErrorLogsResponse{WorkflowID: id, Errors: logs, CacheHit: hit})
}

func (h *APIHandlers) ListErrors(c fiber.Ctx) error {
	var filter catalog.ErrorLogFilter
	if err := c.Bind().Query(&filter); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	logs, err := h.workflows.ListErrorLogs(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListErrorsResponse{Errors: logs, Count: len(logs), Skip: filter.Skip})
}

func (h *APIHandlers) GetErrorStats(c fiber.Ctx) error {
	stats, err := h.workflows.ErrorStats(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetCacheStats(c fiber.Ctx) error {
	stats, err := h.health.CacheStats(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetReport(c fiber.Ctx) error {
	report, err := h.workflows.Report(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) SendSignal(c fiber.Ctx) error {
	id := c.Params("id")
	name := c.Params("name")

	signalID, err := h.workflows.Signal(c.Context(), id, name, c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SignalResponse{WorkflowID: id, SignalID: signalID, Signal: name})
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	stats, err := h.sessions.Stats(c.Context(), c.Params("socketId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) ResetSession(c fiber.Ctx) error {
	if err := h.sessions.Reset(c.Context(), c.Params("socketId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) InvalidateSessionCache(c fiber.Ctx) error {
	if err := h.sessions.Invalidate(c.Context(), c.Params("socketId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checks, ok := h.health.Check(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(HealthResponse{
		Status:    status,
		Checkers:  checks,
		Timestamp: time.Now().UTC(),
	})
}
