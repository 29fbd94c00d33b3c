package domain

import (
	"context"
	"fmt"
)

// Course represents one ingested course document and its lesson structure.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is a numbered subdivision of a course. Numbers are unique within a
// course but need not be contiguous.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Chunk is a unit of retrievable course text. LessonNumber is nil when the
// source document had no lesson markers and was chunked whole. Index is
// 0-based and strictly increasing across the whole document.
type Chunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Index        int    `json:"chunk_index"`
}

// ScoredChunk is a single similarity-search hit.
type ScoredChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Index        int
	Score        float32
}

// SourceRef records where a search hit came from, for display to the user.
type SourceRef struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// CourseNotFoundError reports a course-name filter that matched nothing in
// the catalog. Its text is fed back to the model as the tool result.
type CourseNotFoundError struct {
	Name string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("No course found matching '%s'", e.Name)
}

// Embedder turns text into vectors for the retrieval index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// CourseSearcher is the read side of the retrieval index used by the search
// tool at query time.
type CourseSearcher interface {
	// Search ranks chunks by similarity to query, restricted by the optional
	// filters. courseName may be a partial/fuzzy name; it is resolved against
	// the catalog first, and a *CourseNotFoundError is returned when no
	// plausible match exists. lessonNumber nil means no lesson filter.
	Search(ctx context.Context, query string, courseName string, lessonNumber *int, limit int) ([]ScoredChunk, error)

	// LessonLink returns the stored link for a lesson, or "" when absent.
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// CourseIndex is the full retrieval index contract: catalog plus chunk
// storage, search, and maintenance operations.
type CourseIndex interface {
	CourseSearcher

	// EnsureCollections creates the backing collections when missing.
	EnsureCollections(ctx context.Context) error

	// AddCourse registers a course's catalog entry.
	AddCourse(ctx context.Context, course Course) error

	// AddChunks embeds and stores chunk contents.
	AddChunks(ctx context.Context, chunks []Chunk) error

	// ResolveCourseName maps a fuzzy name to the exact catalog title.
	ResolveCourseName(ctx context.Context, name string) (string, error)

	// CourseOutline returns the catalog entry for an exact title.
	CourseOutline(ctx context.Context, title string) (*Course, error)

	ListCourseTitles(ctx context.Context) ([]string, error)
	CourseCount(ctx context.Context) (int, error)

	// DeleteCourse removes a course's catalog entry and all of its chunks.
	DeleteCourse(ctx context.Context, title string) error

	// Clear drops and recreates both collections.
	Clear(ctx context.Context) error
}
