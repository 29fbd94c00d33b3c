package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coursechat/internal/domain"
)

// CourseSearchTool is the semantic search capability over ingested course
// material, and the only tool advertised to the model when answering.
type CourseSearchTool struct {
	searcher   domain.CourseSearcher
	maxResults int
	logger     *slog.Logger
}

func NewCourseSearchTool(searcher domain.CourseSearcher, maxResults int, logger *slog.Logger) *CourseSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &CourseSearchTool{searcher: searcher, maxResults: maxResults, logger: logger}
}

func (t *CourseSearchTool) Name() string { return "search_course_content" }

func (t *CourseSearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering"
}

func (t *CourseSearchTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"query":         {Type: "string", Description: "What to search for in the course content"},
			"course_name":   {Type: "string", Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')"},
			"lesson_number": {Type: "integer", Description: "Specific lesson number to search within (e.g. 1, 5, 10)"},
		},
		[]string{"query"},
	)
}

// Execute searches and formats hits as "[Course - Lesson N]" blocks. A
// course-name filter that matches nothing becomes result text so the model
// can tell the user which filter failed; other search failures are real
// errors and surface as tool failures upstream.
func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]any) (string, []domain.SourceRef, error) {
	query := ArgsString(args, "query")
	if query == "" {
		return "", nil, fmt.Errorf("missing argument: query")
	}
	courseName := ArgsString(args, "course_name")

	var lessonNumber *int
	if n, ok := ArgsInt(args, "lesson_number"); ok {
		lessonNumber = &n
	}

	hits, err := t.searcher.Search(ctx, query, courseName, lessonNumber, t.maxResults)
	if err != nil {
		var notFound *domain.CourseNotFoundError
		if errors.As(err, &notFound) {
			return notFound.Error(), nil, nil
		}
		return "", nil, fmt.Errorf("search: %w", err)
	}

	if len(hits) == 0 {
		return emptyResultMessage(courseName, lessonNumber), nil, nil
	}

	return t.formatHits(ctx, hits)
}

// emptyResultMessage names the filters that were applied so the model can
// suggest loosening them.
func emptyResultMessage(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// formatHits renders one labeled block per hit and one provenance entry per
// hit in the same order. Lesson links come from the catalog; a failed link
// lookup downgrades the entry to label-only rather than failing the search.
func (t *CourseSearchTool) formatHits(ctx context.Context, hits []domain.ScoredChunk) (string, []domain.SourceRef, error) {
	blocks := make([]string, 0, len(hits))
	sources := make([]domain.SourceRef, 0, len(hits))

	for _, hit := range hits {
		label := hit.CourseTitle
		if hit.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, hit.Content))

		ref := domain.SourceRef{Label: label}
		if hit.LessonNumber != nil {
			link, err := t.searcher.LessonLink(ctx, hit.CourseTitle, *hit.LessonNumber)
			if err != nil {
				t.logger.Warn("lesson link lookup failed",
					"course", hit.CourseTitle, "lesson", *hit.LessonNumber, "error", err)
			} else {
				ref.Link = link
			}
		}
		sources = append(sources, ref)
	}

	return strings.Join(blocks, "\n\n"), sources, nil
}
