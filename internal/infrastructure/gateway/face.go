package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

const (
	faceEnrollPath   = "/api/enroll/from_id"
	enrollmentSource = "id_card"
)

// FaceClient enrolls a person with the face-recognition backend from an ID
// document image. The backend treats enrollment as an upsert keyed on the
// person id, so re-running the call on retry is safe; a 409 means a
// different face is already bound to the person and is terminal.
type FaceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewFaceClient(baseURL, apiKey string, log zerolog.Logger) *FaceClient {
	return &FaceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

type enrollResponse struct {
	Success bool   `json:"success"`
	FaceID  string `json:"face_id"`
	Message string `json:"message"`
}

// EnrollFace posts the document image plus identity metadata as multipart
// form data and returns the biometric reference handle.
func (c *FaceClient) EnrollFace(ctx context.Context, in ports.EnrollFaceInput) (*ports.EnrollmentResult, error) {
	body, contentType, err := buildEnrollForm(in)
	if err != nil {
		return nil, fmt.Errorf("build enroll form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+faceEnrollPath, body)
	if err != nil {
		return nil, fmt.Errorf("build enroll request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enroll face: %w: %w", domain.ErrExternalTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out enrollResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode enroll response: %w: %w", domain.ErrExternalTransient, err)
		}
		if !out.Success {
			msg := out.Message
			if msg == "" {
				msg = "enrollment rejected"
			}
			return nil, fmt.Errorf("enroll face: %s: %w", msg, domain.ErrExternalConflict)
		}
		return &ports.EnrollmentResult{FaceRef: out.FaceID}, nil

	case resp.StatusCode == http.StatusConflict:
		// Person already enrolled or duplicate face detected: no retry can fix this.
		msg := readErrorMessage(resp.Body)
		return nil, fmt.Errorf("enroll face: %s: %w", msg, domain.ErrExternalConflict)

	default:
		msg := readErrorMessage(resp.Body)
		return nil, fmt.Errorf("enroll face: backend returned %d (%s): %w", resp.StatusCode, msg, domain.ErrExternalTransient)
	}
}

func buildEnrollForm(in ports.EnrollFaceInput) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := in.Document.Filename
	if filename == "" {
		filename = fmt.Sprintf("%d-face.jpg", time.Now().UnixMilli())
	}
	contentType := in.Document.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(in.Document.Bytes); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"person_id":    in.IdentityID,
		"name":         in.FullName,
		"email":        in.Email,
		"source":       enrollmentSource,
		"force_enroll": "false",
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func readErrorMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 512))
	var out enrollResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Message != "" {
		return out.Message
	}
	return strings.TrimSpace(string(body))
}
