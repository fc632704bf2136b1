package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hvill/identity-service/internal/core/ports"
)

// maxDocumentBytes caps the uploaded ID document image at 8 MiB.
const maxDocumentBytes = 8 << 20

// RegistrationHandler handles the registration pipeline endpoints.
type RegistrationHandler struct {
	service ports.RegistrationService
}

func NewRegistrationHandler(service ports.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Begin handles POST /v1/register: creates a draft identity.
//
// @Summary      Begin a registration
// @Tags         registration
// @Accept       multipart/form-data
// @Produce      json
// @Param        firstname    formData  string  true   "First name"
// @Param        lastname     formData  string  true   "Last name"
// @Param        email        formData  string  true   "Login email"
// @Param        password     formData  string  true   "Password (min 8 chars)"
// @Param        role         formData  string  true   "Requested role"
// @Param        id_document  formData  file    true   "ID document image"
// @Success      201  {object}  draftResponse
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/register [post]
func (h *RegistrationHandler) Begin(c echo.Context) error {
	var form beginRegistrationForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&form); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	doc, err := readDocument(c, "id_document")
	if err != nil {
		return err
	}

	identity, err := h.service.BeginRegistration(c.Request().Context(), ports.BeginRegistrationInput{
		Firstname:  form.Firstname,
		Middlename: form.Middlename,
		Lastname:   form.Lastname,
		Email:      form.Email,
		Password:   form.Password,
		Gender:     form.Gender,
		Role:       form.Role,
		Document:   doc,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toDraftResponse(identity))
}

// ConfirmOtp handles POST /v1/register/otp: consumes a one-time code.
//
// @Summary      Confirm the registration OTP
// @Tags         registration
// @Accept       json
// @Produce      json
// @Param        body  body      confirmOtpRequest  true  "Identity id and code"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/register/otp [post]
func (h *RegistrationHandler) ConfirmOtp(c echo.Context) error {
	var req confirmOtpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.service.ConfirmOtp(c.Request().Context(), req.IdentityID, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "OTP confirmed"})
}

// Complete handles POST /v1/register/:id/complete: promotes the draft.
//
// @Summary      Complete a registration
// @Tags         registration
// @Produce      json
// @Param        id  path  string  true  "Identity id"
// @Success      200  {object}  draftResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      412  {object}  errorResponse
// @Router       /v1/register/{id}/complete [post]
func (h *RegistrationHandler) Complete(c echo.Context) error {
	identity, err := h.service.CompleteVerification(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDraftResponse(identity))
}

// Status handles GET /v1/register/:id/status: the gate projection.
//
// @Summary      Poll registration status
// @Tags         registration
// @Produce      json
// @Param        id  path  string  true  "Identity id"
// @Success      200  {object}  ports.RegistrationStatus
// @Failure      404  {object}  errorResponse
// @Router       /v1/register/{id}/status [get]
func (h *RegistrationHandler) Status(c echo.Context) error {
	status, err := h.service.RegistrationStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// readDocument pulls the uploaded file part into a ports.Document.
func readDocument(c echo.Context, field string) (ports.Document, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return ports.Document{}, echo.NewHTTPError(http.StatusBadRequest, "ID document image is required")
	}
	if fileHeader.Size > maxDocumentBytes {
		return ports.Document{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document image too large")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return ports.Document{}, echo.NewHTTPError(http.StatusBadRequest, "could not read document image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
	if err != nil {
		return ports.Document{}, echo.NewHTTPError(http.StatusBadRequest, "could not read document image")
	}

	return ports.Document{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Bytes:       data,
	}, nil
}
