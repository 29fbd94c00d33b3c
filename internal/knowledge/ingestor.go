package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"coursechat/internal/domain"
	"coursechat/internal/metrics"
)

// Ingestor reads course documents from disk, runs them through the
// Processor, and writes the results to the index.
type Ingestor struct {
	index     domain.CourseIndex
	processor *Processor
	logger    *slog.Logger
}

// IngestorConfig configures document ingestion.
type IngestorConfig struct {
	Index     domain.CourseIndex
	Processor *Processor
	Logger    *slog.Logger
}

func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("ingestor requires an index")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("ingestor requires a processor")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ingestor{
		index:     cfg.Index,
		processor: cfg.Processor,
		logger:    cfg.Logger.With("component", "ingest"),
	}, nil
}

// AddCourseFile ingests a single document. Any previous data for the same
// course title is removed first, so re-ingesting a document replaces it
// instead of duplicating it.
func (in *Ingestor) AddCourseFile(ctx context.Context, path string) (*domain.Course, int, error) {
	if err := in.index.EnsureCollections(ctx); err != nil {
		return nil, 0, err
	}

	text, err := readDocument(path)
	if err != nil {
		return nil, 0, err
	}

	course, chunks := in.processor.Process(text, titleFromPath(path))

	if err := in.index.DeleteCourse(ctx, course.Title); err != nil {
		return nil, 0, fmt.Errorf("clear previous course data: %w", err)
	}
	if err := in.index.AddCourse(ctx, *course); err != nil {
		return nil, 0, err
	}
	if err := in.index.AddChunks(ctx, chunks); err != nil {
		return nil, 0, err
	}
	metrics.IngestedChunks.Add(int64(len(chunks)))

	in.logger.Info("indexed course", "title", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
	return course, len(chunks), nil
}

// AddCourseFolder ingests every supported document in dir. Courses whose
// title is already in the catalog are skipped, so repeated startups do not
// re-embed anything; pass clear to drop the index and rebuild from scratch.
// A document that fails to parse or store is logged and skipped. Returns the
// number of courses and chunks added.
func (in *Ingestor) AddCourseFolder(ctx context.Context, dir string, clear bool) (int, int, error) {
	if clear {
		if err := in.index.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("clear index: %w", err)
		}
	} else if err := in.index.EnsureCollections(ctx); err != nil {
		return 0, 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read docs folder: %w", err)
	}

	titles, err := in.index.ListCourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list existing courses: %w", err)
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	var courses, chunks int
	for _, entry := range entries {
		if entry.IsDir() || !supportedDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		text, err := readDocument(path)
		if err != nil {
			in.logger.Warn("skipping document", "file", entry.Name(), "error", err)
			continue
		}
		course, courseChunks := in.processor.Process(text, titleFromPath(path))

		if existing[course.Title] {
			in.logger.Debug("course already indexed", "title", course.Title)
			continue
		}

		if err := in.index.AddCourse(ctx, *course); err != nil {
			in.logger.Warn("skipping document", "file", entry.Name(), "error", err)
			continue
		}
		if err := in.index.AddChunks(ctx, courseChunks); err != nil {
			in.logger.Warn("stored catalog entry but not chunks", "file", entry.Name(), "error", err)
			continue
		}
		metrics.IngestedChunks.Add(int64(len(courseChunks)))

		existing[course.Title] = true
		courses++
		chunks += len(courseChunks)
		in.logger.Info("indexed course", "title", course.Title, "lessons", len(course.Lessons), "chunks", len(courseChunks))
	}
	return courses, chunks, nil
}

func readDocument(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return readPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// titleFromPath is the fallback course title for documents without a
// metadata header: the file name minus its extension.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func supportedDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}
