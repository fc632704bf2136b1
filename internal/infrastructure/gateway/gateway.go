package gateway

import (
	"context"

	"github.com/hvill/identity-service/internal/core/ports"
)

// Client bundles the OCR and face-enrollment clients behind the single
// VerificationGateway port the orchestrator depends on.
type Client struct {
	ocr  *OCRClient
	face *FaceClient
}

func NewClient(ocr *OCRClient, face *FaceClient) *Client {
	return &Client{ocr: ocr, face: face}
}

func (c *Client) ExtractDocumentFields(ctx context.Context, doc ports.Document) (*ports.ExtractResult, error) {
	return c.ocr.ExtractDocumentFields(ctx, doc)
}

func (c *Client) EnrollFace(ctx context.Context, in ports.EnrollFaceInput) (*ports.EnrollmentResult, error) {
	return c.face.EnrollFace(ctx, in)
}
