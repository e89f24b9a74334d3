// Package research serves structural breakdowns of uploaded chart images.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prism/internal/logger"
)

var (
	ErrNotImage     = errors.New("invalid file type, please upload an image")
	ErrFileTooLarge = errors.New("uploaded file is too large")
	ErrEmptyUpload  = errors.New("uploaded file is empty")
)

// StatusMessage is returned by the research landing endpoint.
const StatusMessage = "Upload a chart image for specific analysis via /api/research/upload"

// Recorder receives upload outcomes.
type Recorder interface {
	ObserveUpload(result string)
}

type Service struct {
	analyzer VisionAnalyzer
	recorder Recorder
	maxBytes int64
}

func NewService(analyzer VisionAnalyzer, recorder Recorder, maxBytes int64) (*Service, error) {
	if analyzer == nil {
		return nil, errors.New("vision analyzer is required")
	}
	return &Service{analyzer: analyzer, recorder: recorder, maxBytes: maxBytes}, nil
}

// NewAnalyzer builds the configured analyzer.
func NewAnalyzer(name string, seed int64) (VisionAnalyzer, error) {
	switch name {
	case "", "mock":
		return NewMockAnalyzer(seed), nil
	default:
		return nil, fmt.Errorf("unsupported vision analyzer %q", name)
	}
}

// MaxBytes is the upload limit; 0 means unlimited.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Analyze checks the declared content type and size before the analyzer
// sees the image.
func (s *Service) Analyze(ctx context.Context, img Image) (Breakdown, error) {
	if !IsImage(img.ContentType) {
		s.observe("rejected")
		return Breakdown{}, fmt.Errorf("%w: got %q", ErrNotImage, img.ContentType)
	}
	if s.maxBytes > 0 && int64(len(img.Data)) > s.maxBytes {
		s.observe("rejected")
		return Breakdown{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxBytes)
	}
	if len(img.Data) == 0 {
		s.observe("rejected")
		return Breakdown{}, ErrEmptyUpload
	}
	out, err := s.analyzer.Analyze(ctx, img)
	if err != nil {
		s.observe("failed")
		return Breakdown{}, fmt.Errorf("analyze chart: %w", err)
	}
	logger.Debugf("chart %q analyzed trend=%s confidence=%d", img.Filename, out.PrimaryTrend, out.ConfidenceScore)
	s.observe(strings.ToLower(out.PrimaryTrend))
	return out, nil
}

// IsImage reports whether a declared content type is image/*.
func IsImage(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/")
}

func (s *Service) observe(result string) {
	if s.recorder != nil {
		s.recorder.ObserveUpload(result)
	}
}
