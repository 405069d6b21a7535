package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/unihelp/helpdesk/internal/api/dto"
	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/service"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

// TicketsHandler exposes ticket endpoints to every authenticated role.
type TicketsHandler struct {
	service  *service.TicketService
	validate *validator.Validate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(svc *service.TicketService, validate *validator.Validate) *TicketsHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TicketsHandler{service: svc, validate: validate}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		return err
	}
	result, err := h.service.CreateTicket(c.UserContext(), p, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Campus:      req.Campus,
		Location:    req.Location,
		Metadata:    req.Metadata.ToDomain(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	q := parseTicketQuery(c)
	page, err := h.service.ListTickets(c.UserContext(), p, service.TicketListInput{
		Statuses:     q.Statuses,
		Priorities:   q.Priorities,
		Categories:   q.Categories,
		Search:       q.Search,
		AssignedToMe: q.AssignedToMe,
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		Limit:        q.PageSize,
		Page:         q.Page,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": page.Items, "meta": fiber.Map{
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}})
}

// GetTicket GET /api/tickets/:code.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetTicket(c.UserContext(), p, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// UpdateTicket PATCH /api/tickets/:code.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		return err
	}
	input := service.UpdateTicketInput{
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		Category:        req.Category,
		SubCategory:     req.SubCategory,
		Campus:          req.Campus,
		Location:        req.Location,
		EscalationLevel: req.EscalationLevel,
		AssignedTo:      req.AssignedTo,
		Reason:          req.Reason,
	}
	if req.Resolution != nil {
		input.Resolution = &domain.Resolution{
			Summary:            req.Resolution.Summary,
			RootCause:          req.Resolution.RootCause,
			PreventiveMeasures: req.Resolution.PreventiveMeasures,
		}
	}
	if req.Metadata != nil {
		md := req.Metadata.ToDomain()
		input.Metadata = &md
	}
	result, err := h.service.UpdateTicket(c.UserContext(), p, c.Params("code"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// AssignTicket POST /api/tickets/:code/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		return err
	}
	result, err := h.service.Assign(c.UserContext(), p, c.Params("code"), req.HandlerID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// AddComment POST /api/tickets/:code/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		return err
	}
	result, err := h.service.AddComment(c.UserContext(), p, c.Params("code"), service.CommentInput{
		Message:    req.Message,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// AddAttachment POST /api/tickets/:code/attachments (multipart field "file").
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file field required", nil)
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	result, err := h.service.AddAttachment(c.UserContext(), p, c.Params("code"), service.AttachmentInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// History GET /api/tickets/:code/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), p, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// AuditLog GET /api/tickets/:code/audit.
func (h *TicketsHandler) AuditLog(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	records, err := h.service.AuditLog(c.UserContext(), p, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": records})
}

// SLAStatus GET /api/tickets/:code/sla.
func (h *TicketsHandler) SLAStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	status, err := h.service.SLAStatus(c.UserContext(), p, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	q := dto.TicketListQuery{
		Search:       c.Query("search"),
		AssignedToMe: c.QueryBool("assignedToMe"),
		CreatedFrom:  parseTime(c.Query("created_from")),
		CreatedTo:    parseTime(c.Query("created_to")),
		Page:         parseInt(c.Query("page"), 1),
		PageSize:     parseInt(c.Query("page_size"), 0),
	}
	for _, s := range splitQuery(c.Query("status")) {
		q.Statuses = append(q.Statuses, domain.TicketStatus(s))
	}
	for _, s := range splitQuery(c.Query("priority")) {
		q.Priorities = append(q.Priorities, domain.TicketPriority(s))
	}
	for _, s := range splitQuery(c.Query("category")) {
		q.Categories = append(q.Categories, domain.TicketCategory(s))
	}
	return q
}
