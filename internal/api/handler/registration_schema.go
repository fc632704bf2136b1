package handler

import (
	"time"

	"github.com/hvill/identity-service/internal/core/domain"
)

// beginRegistrationForm is the multipart form carried by POST /v1/register.
// The ID document image arrives as the "id_document" file part.
type beginRegistrationForm struct {
	Firstname  string `form:"firstname" validate:"required"`
	Middlename string `form:"middlename"`
	Lastname   string `form:"lastname" validate:"required"`
	Email      string `form:"email" validate:"required,email"`
	Password   string `form:"password" validate:"required,min=8"`
	Gender     string `form:"gender"`
	Role       string `form:"role" validate:"required,oneof=patient receptionist nurse doctor admin superadmin"`
}

type confirmOtpRequest struct {
	IdentityID string `json:"identity_id" validate:"required"`
	Code       string `json:"code" validate:"required,len=6"`
}

type draftResponse struct {
	ID                   string                      `json:"id"`
	Email                string                      `json:"email"`
	Role                 string                      `json:"role"`
	IsDraft              bool                        `json:"is_draft"`
	RegistrationStep     domain.RegistrationStep     `json:"registration_step"`
	FaceEnrollmentStatus domain.FaceEnrollmentStatus `json:"face_enrollment_status"`
	RegistrationStarted  time.Time                   `json:"registration_started"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toDraftResponse(identity *domain.Identity) draftResponse {
	return draftResponse{
		ID:                   identity.ID,
		Email:                identity.Email,
		Role:                 identity.Role,
		IsDraft:              identity.IsDraft,
		RegistrationStep:     identity.RegistrationStep,
		FaceEnrollmentStatus: identity.FaceEnrollmentStatus,
		RegistrationStarted:  identity.RegistrationStarted,
	}
}
