package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unihelp/helpdesk/internal/service"
)

// DashboardHandler serves aggregated ticket figures.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Stats GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.service.GetStats(c.UserContext(), p, service.StatsOptions{
		AssignedToMe: c.QueryBool("assignedToMe"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
