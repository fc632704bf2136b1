package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hvill/identity-service/internal/core/ports"
)

// StaffHandler exposes the staff directory. All routes sit behind the JWT
// and RBAC middleware.
type StaffHandler struct {
	staff      ports.StaffService
	scheduling ports.SchedulingClient
}

func NewStaffHandler(staff ports.StaffService, scheduling ports.SchedulingClient) *StaffHandler {
	return &StaffHandler{staff: staff, scheduling: scheduling}
}

// createStaffRequest provisions a staff identity. Patients are excluded by
// the role whitelist; they only enter through self-registration.
type createStaffRequest struct {
	Firstname  string `json:"firstname" validate:"required"`
	Middlename string `json:"middlename"`
	Lastname   string `json:"lastname" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Phone      string `json:"phone"`
	Gender     string `json:"gender"`
	Role       string `json:"role" validate:"required,oneof=receptionist nurse doctor admin superadmin"`
	Department string `json:"department"`
}

type updateStaffRequest struct {
	Firstname  *string `json:"firstname"`
	Middlename *string `json:"middlename"`
	Lastname   *string `json:"lastname"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone"`
	Gender     *string `json:"gender"`
	Role       *string `json:"role" validate:"omitempty,oneof=receptionist nurse doctor admin superadmin"`
	Department *string `json:"department"`
	IsActive   *bool   `json:"is_active"`
}

type staffListResponse struct {
	Data  []*ports.StaffMember `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// List handles GET /v1/staff.
//
// @Summary      List staff identities
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        role    query  string  false  "Filter by role"
// @Param        active  query  bool    false  "Filter by active flag"
// @Param        search  query  string  false  "Partial name or email match"
// @Param        page    query  int     false  "Page (1-based)"
// @Param        limit   query  int     false  "Page size"
// @Success      200  {object}  staffListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /v1/staff [get]
func (h *StaffHandler) List(c echo.Context) error {
	filter := ports.ListStaffFilter{
		Role:   c.QueryParam("role"),
		Search: c.QueryParam("search"),
	}
	if v := c.QueryParam("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	members, total, err := h.staff.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, staffListResponse{
		Data:  members,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Get handles GET /v1/staff/:id.
//
// @Summary      Get a staff identity
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Identity id"
// @Success      200  {object}  ports.StaffMember
// @Failure      404  {object}  errorResponse
// @Router       /v1/staff/{id} [get]
func (h *StaffHandler) Get(c echo.Context) error {
	member, err := h.staff.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// Create handles POST /v1/staff: direct staff provisioning.
//
// @Summary      Provision a staff identity
// @Tags         staff
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createStaffRequest  true  "Staff profile"
// @Success      201  {object}  ports.StaffMember
// @Failure      409  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/staff [post]
func (h *StaffHandler) Create(c echo.Context) error {
	var req createStaffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	member, err := h.staff.Create(c.Request().Context(), ports.CreateStaffInput{
		Firstname:  req.Firstname,
		Middlename: req.Middlename,
		Lastname:   req.Lastname,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		Gender:     req.Gender,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// Update handles PUT /v1/staff/:id: partial profile update.
//
// @Summary      Update a staff identity
// @Tags         staff
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Identity id"
// @Param        body  body      updateStaffRequest  true  "Fields to change"
// @Success      200  {object}  ports.StaffMember
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/staff/{id} [put]
func (h *StaffHandler) Update(c echo.Context) error {
	var req updateStaffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	member, err := h.staff.Update(c.Request().Context(), c.Param("id"), ports.UpdateStaffInput{
		Firstname:  req.Firstname,
		Middlename: req.Middlename,
		Lastname:   req.Lastname,
		Email:      req.Email,
		Phone:      req.Phone,
		Gender:     req.Gender,
		Role:       req.Role,
		Department: req.Department,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// Deactivate handles DELETE /v1/staff/:id: soft delete.
//
// @Summary      Deactivate a staff identity
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Identity id"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/staff/{id} [delete]
func (h *StaffHandler) Deactivate(c echo.Context) error {
	if _, err := h.staff.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "staff deactivated"})
}

// Statistics handles GET /v1/staff/statistics.
//
// @Summary      Staff statistics
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.StaffStatistics
// @Router       /v1/staff/statistics [get]
func (h *StaffHandler) Statistics(c echo.Context) error {
	stats, err := h.staff.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Departments handles GET /v1/departments: proxied from the scheduling service.
//
// @Summary      List departments
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  ports.Department
// @Failure      502  {object}  errorResponse
// @Router       /v1/departments [get]
func (h *StaffHandler) Departments(c echo.Context) error {
	departments, err := h.scheduling.Departments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, departments)
}
