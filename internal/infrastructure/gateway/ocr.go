// Package gateway implements the client abstraction over the external OCR
// and face-recognition backends. Failures are classified into
// domain.ErrExternalTransient (timeouts, 5xx, retryable) and
// domain.ErrExternalConflict (semantic 4xx, never retried); a review-queue
// rejection from the OCR backend is not an error at all but a manual-review
// outcome.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

const (
	requestTimeout   = 30 * time.Second
	ocrPollInterval  = time.Second
	ocrMaxPolls      = 10
	ocrAnalyzePath   = "/vision/v3.2/read/analyze"
	subscriptionHead = "Ocp-Apim-Subscription-Key"
)

// OCRClient calls the document-read backend: submit the image, follow the
// Operation-Location header, poll until the analysis finishes, then parse the
// recognized lines into structured fields.
type OCRClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewOCRClient(baseURL, apiKey string, log zerolog.Logger) *OCRClient {
	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

type ocrAnalysis struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// ExtractDocumentFields submits the document image and returns the parsed
// fields. A 4xx review-queue rejection surfaces as an ExtractManualReview
// result rather than an error so registration can continue without fields.
func (c *OCRClient) ExtractDocumentFields(ctx context.Context, doc ports.Document) (*ports.ExtractResult, error) {
	opLocation, err := c.submit(ctx, doc)
	if err != nil {
		return nil, err
	}
	if opLocation == "" {
		// Backend accepted the image but refused automatic extraction.
		return &ports.ExtractResult{Outcome: ports.ExtractManualReview}, nil
	}

	text, err := c.poll(ctx, opLocation)
	if err != nil {
		return nil, err
	}

	fields := ParseDocumentText(text)
	return &ports.ExtractResult{Outcome: ports.ExtractSucceeded, Fields: fields}, nil
}

// submit posts the image bytes and returns the poll URL. An empty URL with a
// nil error signals the recoverable review-queue path.
func (c *OCRClient) submit(ctx context.Context, doc ports.Document) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ocrAnalyzePath, bytes.NewReader(doc.Bytes))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set(subscriptionHead, c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit document: %w: %w", domain.ErrExternalTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		loc := resp.Header.Get("Operation-Location")
		if loc == "" {
			return "", fmt.Errorf("submit document: missing operation-location: %w", domain.ErrExternalTransient)
		}
		return loc, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The backend explicitly rejected the image (unreadable, unsupported
		// format). Route to manual review instead of failing registration.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Info().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("ocr backend rejected document, routing to manual review")
		return "", nil
	default:
		return "", fmt.Errorf("submit document: backend returned %d: %w", resp.StatusCode, domain.ErrExternalTransient)
	}
}

// poll follows the operation URL until the analysis succeeds or the poll
// budget runs out, returning the concatenated recognized text.
func (c *OCRClient) poll(ctx context.Context, opLocation string) (string, error) {
	for i := 0; i < ocrMaxPolls; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLocation, nil)
		if err != nil {
			return "", fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set(subscriptionHead, c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("poll analysis: %w: %w", domain.ErrExternalTransient, err)
		}

		var analysis ocrAnalysis
		decodeErr := json.NewDecoder(resp.Body).Decode(&analysis)
		resp.Body.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("decode analysis: %w: %w", domain.ErrExternalTransient, decodeErr)
		}

		switch analysis.Status {
		case "succeeded":
			var lines []string
			for _, page := range analysis.AnalyzeResult.ReadResults {
				for _, line := range page.Lines {
					lines = append(lines, line.Text)
				}
			}
			return strings.Join(lines, "\n"), nil
		case "failed":
			return "", fmt.Errorf("analysis failed: %w", domain.ErrExternalTransient)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("poll analysis: %w: %w", domain.ErrExternalTransient, ctx.Err())
		case <-time.After(ocrPollInterval):
		}
	}
	return "", fmt.Errorf("analysis timed out after %d polls: %w", ocrMaxPolls, domain.ErrExternalTransient)
}
