package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coursechat/internal/domain"
)

// fakeSearcher records the filters it was called with and serves canned hits.
type fakeSearcher struct {
	hits      []domain.ScoredChunk
	searchErr error
	links     map[string]string
	linkErr   error

	lastQuery  string
	lastCourse string
	lastLesson *int
	lastLimit  int
}

func (f *fakeSearcher) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]domain.ScoredChunk, error) {
	f.lastQuery = query
	f.lastCourse = courseName
	f.lastLesson = lessonNumber
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeSearcher) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	if f.linkErr != nil {
		return "", f.linkErr
	}
	return f.links[fmt.Sprintf("%s|%d", courseTitle, lessonNumber)], nil
}

var _ domain.CourseSearcher = (*fakeSearcher)(nil)

func intPtr(n int) *int { return &n }

func TestCourseSearch_FormatsBlocks(t *testing.T) {
	searcher := &fakeSearcher{
		hits: []domain.ScoredChunk{
			{Content: "first chunk", CourseTitle: "Go Course", LessonNumber: intPtr(1)},
			{Content: "second chunk", CourseTitle: "Go Course"},
		},
		links: map[string]string{"Go Course|1": "https://example.com/lesson1"},
	}
	tool := NewCourseSearchTool(searcher, 5, testLogger())

	result, sources, err := tool.Execute(context.Background(), map[string]any{"query": "channels"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := "[Go Course - Lesson 1]\nfirst chunk\n\n[Go Course]\nsecond chunk"
	if result != want {
		t.Fatalf("expected %q, got %q", want, result)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Label != "Go Course - Lesson 1" || sources[0].Link != "https://example.com/lesson1" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Label != "Go Course" || sources[1].Link != "" {
		t.Fatalf("unexpected second source: %+v", sources[1])
	}
}

func TestCourseSearch_MissingQuery(t *testing.T) {
	tool := NewCourseSearchTool(&fakeSearcher{}, 5, testLogger())
	_, _, err := tool.Execute(context.Background(), map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestCourseSearch_PassesFilters(t *testing.T) {
	searcher := &fakeSearcher{}
	tool := NewCourseSearchTool(searcher, 5, testLogger())

	_, _, err := tool.Execute(context.Background(), map[string]any{
		"query":         "what is a tool",
		"course_name":   "MCP",
		"lesson_number": 3.0,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if searcher.lastQuery != "what is a tool" {
		t.Fatalf("expected query passthrough, got %q", searcher.lastQuery)
	}
	if searcher.lastCourse != "MCP" {
		t.Fatalf("expected course filter 'MCP', got %q", searcher.lastCourse)
	}
	if searcher.lastLesson == nil || *searcher.lastLesson != 3 {
		t.Fatalf("expected lesson filter 3, got %v", searcher.lastLesson)
	}
	if searcher.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", searcher.lastLimit)
	}
}

func TestCourseSearch_CourseNotFoundBecomesText(t *testing.T) {
	searcher := &fakeSearcher{searchErr: &domain.CourseNotFoundError{Name: "Rust"}}
	tool := NewCourseSearchTool(searcher, 5, testLogger())

	result, sources, err := tool.Execute(context.Background(), map[string]any{
		"query":       "ownership",
		"course_name": "Rust",
	})
	if err != nil {
		t.Fatalf("course-not-found should not be an error: %v", err)
	}
	if result != "No course found matching 'Rust'" {
		t.Fatalf("unexpected result text: %q", result)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %v", sources)
	}
}

func TestCourseSearch_SearchErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{searchErr: errors.New("vector store unavailable")}
	tool := NewCourseSearchTool(searcher, 5, testLogger())

	_, _, err := tool.Execute(context.Background(), map[string]any{"query": "anything"})
	if err == nil {
		t.Fatal("expected store failure to surface as error")
	}
}

func TestCourseSearch_EmptyResultsNameFilters(t *testing.T) {
	tool := NewCourseSearchTool(&fakeSearcher{}, 5, testLogger())

	result, _, err := tool.Execute(context.Background(), map[string]any{
		"query":         "nothing",
		"course_name":   "MCP",
		"lesson_number": 2.0,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "No relevant content found in course 'MCP' in lesson 2." {
		t.Fatalf("unexpected empty message: %q", result)
	}

	result, _, err = tool.Execute(context.Background(), map[string]any{"query": "nothing"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "No relevant content found." {
		t.Fatalf("unexpected unfiltered empty message: %q", result)
	}
}

func TestCourseSearch_LinkFailureKeepsResult(t *testing.T) {
	searcher := &fakeSearcher{
		hits:    []domain.ScoredChunk{{Content: "body", CourseTitle: "Go Course", LessonNumber: intPtr(4)}},
		linkErr: errors.New("catalog read failed"),
	}
	tool := NewCourseSearchTool(searcher, 5, testLogger())

	result, sources, err := tool.Execute(context.Background(), map[string]any{"query": "body"})
	if err != nil {
		t.Fatalf("link failure should not fail the search: %v", err)
	}
	if result != "[Go Course - Lesson 4]\nbody" {
		t.Fatalf("unexpected result: %q", result)
	}
	if len(sources) != 1 || sources[0].Link != "" {
		t.Fatalf("expected label-only source, got %+v", sources)
	}
}

func TestCourseSearch_Schema(t *testing.T) {
	tool := NewCourseSearchTool(&fakeSearcher{}, 5, testLogger())

	if tool.Name() != "search_course_content" {
		t.Fatalf("unexpected tool name %q", tool.Name())
	}

	params := tool.Parameters()
	props := params["properties"].(map[string]any)
	for _, want := range []string{"query", "course_name", "lesson_number"} {
		if _, ok := props[want]; !ok {
			t.Fatalf("schema missing property %q", want)
		}
	}
	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("expected only query required, got %v", required)
	}
}
