package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

type stubStaffService struct {
	createFn func(ctx context.Context, in ports.CreateStaffInput) (*ports.StaffMember, error)
	updateFn func(ctx context.Context, id string, in ports.UpdateStaffInput) (*ports.StaffMember, error)
}

func (s *stubStaffService) List(context.Context, ports.ListStaffFilter) ([]*ports.StaffMember, int64, error) {
	return nil, 0, nil
}

func (s *stubStaffService) Get(context.Context, string) (*ports.StaffMember, error) {
	return nil, nil
}

func (s *stubStaffService) Create(ctx context.Context, in ports.CreateStaffInput) (*ports.StaffMember, error) {
	return s.createFn(ctx, in)
}

func (s *stubStaffService) Update(ctx context.Context, id string, in ports.UpdateStaffInput) (*ports.StaffMember, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubStaffService) Deactivate(context.Context, string) (*domain.Identity, error) {
	return nil, nil
}

func (s *stubStaffService) Statistics(context.Context) (*ports.StaffStatistics, error) {
	return nil, nil
}

func TestStaffHandler_Create_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubStaffService{
		createFn: func(_ context.Context, in ports.CreateStaffInput) (*ports.StaffMember, error) {
			if in.Email != "luis@example.com" || in.Role != domain.RoleNurse {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.StaffMember{Identity: &domain.Identity{
				ID:         "id-1",
				Email:      in.Email,
				Role:       in.Role,
				IsVerified: true,
			}}, nil
		},
	}
	handler := NewStaffHandler(stub, nil)

	body := strings.NewReader(`{"firstname":"Luis","lastname":"Hernandez","email":"luis@example.com","password":"secret-pass","role":"nurse"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/staff", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["email"] != "luis@example.com" || resp["is_verified"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestStaffHandler_Create_PatientRoleFailsValidation(t *testing.T) {
	e := newTestEcho()
	stub := &stubStaffService{
		createFn: func(context.Context, ports.CreateStaffInput) (*ports.StaffMember, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewStaffHandler(stub, nil)

	body := strings.NewReader(`{"firstname":"Ana","lastname":"Gomez","email":"ana@example.com","password":"secret-pass","role":"patient"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/staff", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Create(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 http error, got %v", err)
	}
}

func TestStaffHandler_Update_PartialFields(t *testing.T) {
	e := newTestEcho()
	stub := &stubStaffService{
		updateFn: func(_ context.Context, id string, in ports.UpdateStaffInput) (*ports.StaffMember, error) {
			if id != "id-1" {
				t.Fatalf("unexpected id: %s", id)
			}
			if in.Phone == nil || *in.Phone != "555-0101" {
				t.Fatalf("phone not carried: %+v", in)
			}
			if in.Role != nil || in.Email != nil {
				t.Fatalf("absent fields must stay nil: %+v", in)
			}
			return &ports.StaffMember{Identity: &domain.Identity{ID: id, Phone: "555-0101"}}, nil
		},
	}
	handler := NewStaffHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/staff/id-1", strings.NewReader(`{"phone":"555-0101"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("id-1")

	if err := handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStaffHandler_Update_PropagatesDomainError(t *testing.T) {
	e := newTestEcho()
	stub := &stubStaffService{
		updateFn: func(context.Context, string, ports.UpdateStaffInput) (*ports.StaffMember, error) {
			return nil, domain.ErrIdentityNotFound
		},
	}
	handler := NewStaffHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/staff/id-9", strings.NewReader(`{"phone":"555-0101"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("id-9")

	if err := handler.Update(c); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}
