package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/clients/gcpvision"
	"github.com/goldseal/goldseal-backend/internal/clients/gcs"
	"github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const (
	// A PDF text layer shorter than this is treated as a scanned
	// document and routed through OCR instead.
	pdfTextLayerMinChars = 100

	// Structure analysis only sees the head of very long documents.
	structureAnalysisMaxChars = 15000

	ocrMaxPages = 200
)

const imageExtractionPrompt = `Extract all text from this image. This is a contractor license course handout.

Instructions:
- Preserve the structure and formatting as much as possible
- Include all headings, bullet points, and numbered lists
- Include any tables or diagrams described in text
- Include any code references or regulation numbers
- If there are multiple sections, clearly separate them

Output the extracted text in a clean, readable format.`

const structureAnalysisPrompt = `Analyze this contractor license course document and identify its logical sections.

Document:
%s

Return a JSON array with the following structure:
[
  {
    "title": "Section title",
    "startIndex": 0,
    "endIndex": 500,
    "summary": "Brief 1-2 sentence summary of this section"
  }
]

Focus on identifying:
- Major topic areas
- Code sections or regulations
- Procedures or processes
- Definitions or terminology sections
- Examples or case studies

Return ONLY valid JSON, no other text.`

// Extractor pulls raw text out of uploaded handout files. The llm and
// ocr collaborators may be nil when credentials are absent; extraction
// then degrades per file type instead of failing outright.
type Extractor struct {
	log      *logger.Logger
	handouts repos.HandoutRepo
	bucket   gcs.BucketService
	llm      anthropic.Client
	ocr      gcpvision.OCR
}

func NewExtractor(log *logger.Logger, handouts repos.HandoutRepo, bucket gcs.BucketService, llm anthropic.Client, ocr gcpvision.OCR) *Extractor {
	return &Extractor{
		log:      log.With("service", "Extractor"),
		handouts: handouts,
		bucket:   bucket,
		llm:      llm,
		ocr:      ocr,
	}
}

// ProcessHandout downloads the handout file, extracts its text, and
// stores the result on the handout record.
func (e *Extractor) ProcessHandout(ctx context.Context, handoutID uuid.UUID) error {
	handout, err := e.handouts.GetByID(ctx, nil, handoutID)
	if err != nil {
		return err
	}

	rc, err := e.bucket.DownloadFile(ctx, handout.FilePath)
	if err != nil {
		return fmt.Errorf("download handout file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read handout file: %w", err)
	}

	text, method, err := e.ExtractText(ctx, handout, data)
	if err != nil {
		return err
	}

	if err := e.handouts.UpdateExtraction(ctx, nil, handoutID, text, method); err != nil {
		return err
	}

	e.log.Info("extracted handout text", "handout_id", handoutID, "title", handout.Title,
		"method", method, "chars", len(text))
	return nil
}

// ExtractText dispatches on file type. Returns the extracted text and
// the method that produced it.
func (e *Extractor) ExtractText(ctx context.Context, handout *types.Handout, data []byte) (string, string, error) {
	switch handout.FileType {
	case types.FileTypeText:
		return string(data), types.ExtractionMethodText, nil
	case types.FileTypePDF:
		return e.extractFromPDF(ctx, handout, data)
	case types.FileTypeImage:
		text, err := e.extractFromImage(ctx, data)
		if err != nil {
			return "", "", err
		}
		return text, types.ExtractionMethodVision, nil
	default:
		return "", "", fmt.Errorf("%w: unknown file type %q", errors.ErrInvalidArgument, handout.FileType)
	}
}

func (e *Extractor) extractFromPDF(ctx context.Context, handout *types.Handout, data []byte) (string, string, error) {
	text, err := pdfTextLayer(data)
	if err != nil {
		e.log.Warn("pdf text extraction failed, falling back to ocr", "handout_id", handout.ID, "error", err)
	}
	if len(strings.TrimSpace(text)) > pdfTextLayerMinChars {
		return text, types.ExtractionMethodText, nil
	}

	// Scanned PDF. Vision OCR reads the file straight from the bucket.
	if e.ocr != nil {
		sourceURI := e.bucket.GSURI(handout.FilePath)
		outputPrefix := e.bucket.GSURI(fmt.Sprintf("ocr-output/%s/", handout.ID))
		ocrText, err := e.ocr.OCRPDFInGCS(ctx, sourceURI, outputPrefix, ocrMaxPages)
		if err != nil {
			return "", "", fmt.Errorf("ocr scanned pdf: %w", err)
		}
		return ocrText, types.ExtractionMethodVision, nil
	}

	if e.llm == nil {
		return "", "", fmt.Errorf("%w: scanned pdf extraction requires ANTHROPIC_API_KEY", errors.ErrNoCredentials)
	}

	// No OCR backend configured. Record a marker so the handout is not
	// re-extracted on every run; an operator can re-process it once OCR
	// is available.
	return fmt.Sprintf("[PDF requires OCR processing: %s]", handout.Title), types.ExtractionMethodVision, nil
}

func pdfTextLayer(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text layer: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", fmt.Errorf("read pdf text layer: %w", err)
	}
	return sb.String(), nil
}

func (e *Extractor) extractFromImage(ctx context.Context, data []byte) (string, error) {
	if e.llm == nil {
		return "", fmt.Errorf("%w: image extraction requires ANTHROPIC_API_KEY", errors.ErrNoCredentials)
	}
	return e.llm.GenerateTextWithImage(ctx, "", imageExtractionPrompt, data, imageMediaType(data))
}

func imageMediaType(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return ct
	default:
		return "image/png"
	}
}

// AnalyzeStructure asks the model to identify the document's logical
// sections. Without a model, or when the model's answer does not parse,
// the whole document becomes a single section.
func (e *Extractor) AnalyzeStructure(ctx context.Context, text string) ([]types.Section, error) {
	fallback := []types.Section{{
		Title:      "Document Content",
		Summary:    headOf(text, 200),
		StartIndex: 0,
		EndIndex:   len(text),
	}}

	if e.llm == nil {
		return fallback, nil
	}

	prompt := fmt.Sprintf(structureAnalysisPrompt, headOf(text, structureAnalysisMaxChars))
	raw, err := e.llm.GenerateText(ctx, "", []anthropic.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("analyze structure: %w", err)
	}

	sections, ok := parseSections(raw, len(text))
	if !ok {
		e.log.Warn("structure analysis returned unparseable sections, using single-section fallback",
			"response_chars", len(raw))
		return fallback, nil
	}
	return sections, nil
}

func parseSections(raw string, textLen int) ([]types.Section, bool) {
	cleaned := stripCodeFences(raw)

	var sections []types.Section
	if err := json.Unmarshal([]byte(cleaned), &sections); err != nil {
		return nil, false
	}
	if len(sections) == 0 {
		return nil, false
	}

	out := make([]types.Section, 0, len(sections))
	for _, s := range sections {
		s.StartIndex = clampIndex(s.StartIndex, textLen)
		s.EndIndex = clampIndex(s.EndIndex, textLen)
		if s.EndIndex <= s.StartIndex || strings.TrimSpace(s.Title) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
