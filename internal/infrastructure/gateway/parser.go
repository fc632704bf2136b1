package gateway

import (
	"regexp"
	"strings"
	"time"

	"github.com/hvill/identity-service/internal/core/domain"
)

var (
	idNumberPattern = regexp.MustCompile(`\b([A-Z]{0,3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{1,4})\b`)
	datePattern     = regexp.MustCompile(`\b(\d{4}[-/]\d{2}[-/]\d{2}|\d{2}[-/]\d{2}[-/]\d{4})\b`)
	nameLabel       = regexp.MustCompile(`(?i)^(name|full name|apellidos?, nombres?)[:\s]+(.+)$`)
	dobLabel        = regexp.MustCompile(`(?i)(date of birth|birth date|dob)[:\s]*(.*)$`)
)

// ParseDocumentText applies line-based heuristics to the raw OCR text of a
// government ID: a labelled name line, a birth-date line (labelled or the
// first date found), and the first serial-looking token as document number.
// Missing fields are simply left zero; the verification record can still go
// to manual review downstream.
func ParseDocumentText(text string) *domain.ExtractedFields {
	fields := &domain.ExtractedFields{}
	lines := strings.Split(text, "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if fields.FullName == "" {
			if m := nameLabel.FindStringSubmatch(line); m != nil {
				fields.FullName = strings.TrimSpace(m[2])
				continue
			}
		}

		if fields.BirthDate == nil {
			if m := dobLabel.FindStringSubmatch(line); m != nil {
				candidate := strings.TrimSpace(m[2])
				if candidate == "" && i+1 < len(lines) {
					candidate = strings.TrimSpace(lines[i+1])
				}
				if d := parseDate(candidate); d != nil {
					fields.BirthDate = d
					continue
				}
			}
		}

		if fields.DocumentNumber == "" {
			if m := idNumberPattern.FindString(line); m != "" {
				fields.DocumentNumber = strings.ReplaceAll(strings.ReplaceAll(m, " ", ""), "-", "")
			}
		}
	}

	// Fallback: take the first parseable date on the document as birth date.
	if fields.BirthDate == nil {
		if m := datePattern.FindString(text); m != "" {
			fields.BirthDate = parseDate(m)
		}
	}

	return fields
}

func parseDate(s string) *time.Time {
	m := datePattern.FindString(s)
	if m == "" {
		return nil
	}
	m = strings.ReplaceAll(m, "/", "-")
	for _, layout := range []string{"2006-01-02", "01-02-2006", "02-01-2006"} {
		if t, err := time.Parse(layout, m); err == nil {
			return &t
		}
	}
	return nil
}
