package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/vitaehq/vitae/internal/models"
)

// IngestionError reports a PDF that could not be turned into chunks.
type IngestionError struct {
	Source string
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.Source, e.Reason)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

type IngestorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Ingestor struct {
	config IngestorConfig
}

func NewWithConfig(config IngestorConfig) *Ingestor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 100
	}

	return &Ingestor{
		config: config,
	}
}

// Process extracts text from a PDF and splits it into overlapping
// fixed-size chunks. Chunks never span page boundaries, so every chunk
// carries the page it came from.
func (ing *Ingestor) Process(data []byte, source string) ([]models.Chunk, error) {
	pages, err := extractPages(data)
	if err != nil {
		return nil, &IngestionError{Source: source, Reason: "not a parseable PDF", Err: err}
	}

	var chunks []models.Chunk
	index := 0

	for _, page := range pages {
		text := normalize(page.text)
		if text == "" {
			continue
		}

		for _, span := range ing.SplitText(text) {
			chunks = append(chunks, models.Chunk{
				ID:     uuid.NewString(),
				Source: source,
				Page:   page.number,
				Index:  index,
				Size:   len([]rune(span)),
				Text:   span,
			})
			index++
		}
	}

	if len(chunks) == 0 {
		return nil, &IngestionError{Source: source, Reason: "no extractable text"}
	}

	return chunks, nil
}

// SplitText cuts text into windows of at most ChunkSize runes, each
// consecutive pair sharing exactly ChunkOverlap runes.
func (ing *Ingestor) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= ing.config.ChunkSize {
		return []string{string(runes)}
	}

	step := ing.config.ChunkSize - ing.config.ChunkOverlap
	var spans []string

	for start := 0; start < len(runes); start += step {
		end := start + ing.config.ChunkSize
		if end >= len(runes) {
			spans = append(spans, string(runes[start:]))
			break
		}
		spans = append(spans, string(runes[start:end]))
	}

	return spans
}

type pageText struct {
	number int
	text   string
}

func extractPages(data []byte) (pages []pageText, err error) {
	// The underlying parser panics on some malformed files instead of
	// returning an error.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, pageText{number: i, text: text})
	}

	return pages, nil
}

// normalize collapses whitespace runs so window offsets are stable.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
