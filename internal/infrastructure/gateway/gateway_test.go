package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

var discardLogger = zerolog.Nop()

func testDocument() ports.Document {
	return ports.Document{Filename: "ine.jpg", ContentType: "image/jpeg", Bytes: []byte("fake-image")}
}

// ---------------------------------------------------------------------------
// FaceClient
// ---------------------------------------------------------------------------

func TestFaceClient_EnrollSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != faceEnrollPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("api key header missing")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("person_id") != "id-1" || r.FormValue("source") != enrollmentSource {
			t.Errorf("unexpected form fields: %v", r.MultipartForm.Value)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("image part missing: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"face_id":"face-abc"}`))
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, "test-key", discardLogger)
	result, err := client.EnrollFace(context.Background(), ports.EnrollFaceInput{
		IdentityID: "id-1",
		FullName:   "Ana Gomez",
		Email:      "ana@example.com",
		Document:   testDocument(),
	})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if result.FaceRef != "face-abc" {
		t.Errorf("expected face-abc, got %q", result.FaceRef)
	}
}

func TestFaceClient_ConflictIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"person already enrolled with a different face"}`))
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, "test-key", discardLogger)
	_, err := client.EnrollFace(context.Background(), ports.EnrollFaceInput{IdentityID: "id-1", Document: testDocument()})
	if !errors.Is(err, domain.ErrExternalConflict) {
		t.Fatalf("409 must map to ErrExternalConflict, got %v", err)
	}
}

func TestFaceClient_UnsuccessfulBodyIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, "test-key", discardLogger)
	_, err := client.EnrollFace(context.Background(), ports.EnrollFaceInput{IdentityID: "id-1", Document: testDocument()})
	if !errors.Is(err, domain.ErrExternalConflict) {
		t.Fatalf("2xx with success=false must map to ErrExternalConflict, got %v", err)
	}
}

func TestFaceClient_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, "test-key", discardLogger)
	_, err := client.EnrollFace(context.Background(), ports.EnrollFaceInput{IdentityID: "id-1", Document: testDocument()})
	if !errors.Is(err, domain.ErrExternalTransient) {
		t.Fatalf("5xx must map to ErrExternalTransient, got %v", err)
	}
}

func TestFaceClient_UnreachableBackendIsTransient(t *testing.T) {
	client := NewFaceClient("http://127.0.0.1:1", "test-key", discardLogger)
	_, err := client.EnrollFace(context.Background(), ports.EnrollFaceInput{IdentityID: "id-1", Document: testDocument()})
	if !errors.Is(err, domain.ErrExternalTransient) {
		t.Fatalf("network failure must map to ErrExternalTransient, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// OCRClient
// ---------------------------------------------------------------------------

func TestOCRClient_ExtractSucceeds(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ocrAnalyzePath:
			if r.Header.Get(subscriptionHead) != "test-key" {
				t.Error("subscription key header missing")
			}
			w.Header().Set("Operation-Location", srvURL+"/operations/op-1")
			w.WriteHeader(http.StatusAccepted)
		case "/operations/op-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "succeeded",
				"analyzeResult": {"readResults": [{"lines": [
					{"text": "NAME: GOMEZ ANA"},
					{"text": "DATE OF BIRTH: 1990-01-15"}
				]}]}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	client := NewOCRClient(srv.URL, "test-key", discardLogger)
	result, err := client.ExtractDocumentFields(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Outcome != ports.ExtractSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Outcome)
	}
	if result.Fields.FullName != "GOMEZ ANA" {
		t.Errorf("fields not parsed: %+v", result.Fields)
	}
}

func TestOCRClient_RejectionRoutesToManualReview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		_, _ = w.Write([]byte(`{"error":"InvalidImageFormat"}`))
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, "test-key", discardLogger)
	result, err := client.ExtractDocumentFields(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("a 4xx rejection must not be an error: %v", err)
	}
	if result.Outcome != ports.ExtractManualReview {
		t.Fatalf("expected manual_review, got %s", result.Outcome)
	}
}

func TestOCRClient_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, "test-key", discardLogger)
	_, err := client.ExtractDocumentFields(context.Background(), testDocument())
	if !errors.Is(err, domain.ErrExternalTransient) {
		t.Fatalf("5xx must map to ErrExternalTransient, got %v", err)
	}
}

func TestOCRClient_FailedAnalysisIsTransient(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == ocrAnalyzePath {
			w.Header().Set("Operation-Location", srvURL+"/operations/op-1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	client := NewOCRClient(srv.URL, "test-key", discardLogger)
	_, err := client.ExtractDocumentFields(context.Background(), testDocument())
	if !errors.Is(err, domain.ErrExternalTransient) {
		t.Fatalf("failed analysis must map to ErrExternalTransient, got %v", err)
	}
}
