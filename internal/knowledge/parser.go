// Package knowledge turns raw course documents into catalog entries and
// retrievable chunks, and backs them with a vector index.
package knowledge

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"coursechat/internal/domain"
)

// Course documents carry a three-line metadata header followed by numbered
// lesson blocks:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<lesson body...>
//
// Missing or malformed header lines leave the field empty; they never fail
// the document.
const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"

	headerLines = 3
)

var lessonPattern = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Processor parses course documents and chunks their lesson bodies.
type Processor struct {
	maxChars     int
	overlapChars int
	logger       *slog.Logger
}

type ProcessorConfig struct {
	MaxChars     int // character budget per chunk (default: 800)
	OverlapChars int // characters re-included from the previous chunk (default: 100)
	Logger       *slog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 800
	}
	if cfg.OverlapChars < 0 || cfg.OverlapChars >= cfg.MaxChars {
		cfg.OverlapChars = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		maxChars:     cfg.MaxChars,
		overlapChars: cfg.OverlapChars,
		logger:       cfg.Logger,
	}
}

type lessonBody struct {
	lesson domain.Lesson
	body   string
}

// Process parses raw course text into a course and its chunks. fallbackTitle
// (typically the file name) is used when the header has no title. Chunk
// indices are 0-based and strictly increasing across the whole document.
func (p *Processor) Process(raw, fallbackTitle string) (*domain.Course, []domain.Chunk) {
	lines := strings.Split(raw, "\n")

	course := p.parseHeader(lines)
	if course.Title == "" {
		course.Title = fallbackTitle
	}

	bodies := parseLessons(lines)

	var chunks []domain.Chunk
	if len(bodies) == 0 {
		// No lesson markers: chunk the whole remaining text unsectioned.
		body := strings.Join(lines[min(headerLines, len(lines)):], "\n")
		chunks = p.appendChunks(chunks, body, course.Title, nil)
	} else {
		for _, lb := range bodies {
			course.Lessons = append(course.Lessons, lb.lesson)
			n := lb.lesson.Number
			chunks = p.appendChunks(chunks, lb.body, course.Title, &n)
		}
	}

	p.logger.Debug("course document processed",
		"title", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
	return course, chunks
}

// parseHeader reads up to the first three lines as fixed-order metadata.
func (p *Processor) parseHeader(lines []string) *domain.Course {
	course := &domain.Course{}
	get := func(i int, prefix string) string {
		if i >= len(lines) {
			return ""
		}
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, prefix) {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(line, prefix))
	}
	course.Title = get(0, titlePrefix)
	course.Link = get(1, linkPrefix)
	course.Instructor = get(2, instructorPrefix)
	return course
}

// parseLessons scans past the header for "Lesson N: Title" boundaries. An
// optional "Lesson Link:" line directly below a boundary attaches the link.
// Everything until the next boundary belongs to the lesson body.
func parseLessons(lines []string) []lessonBody {
	var bodies []lessonBody
	var current *lessonBody

	flush := func(buf *[]string) {
		if current != nil {
			current.body = strings.TrimSpace(strings.Join(*buf, "\n"))
			bodies = append(bodies, *current)
			current = nil
		}
		*buf = (*buf)[:0]
	}

	var buf []string
	for i := headerLines; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := lessonPattern.FindStringSubmatch(line); m != nil {
			// A number too large for int is not a boundary; the line falls
			// through as body text.
			if num, err := strconv.Atoi(m[1]); err == nil {
				flush(&buf)
				current = &lessonBody{lesson: domain.Lesson{Number: num, Title: strings.TrimSpace(m[2])}}

				if i+1 < len(lines) {
					next := strings.TrimSpace(lines[i+1])
					if strings.HasPrefix(next, lessonLinkPrefix) {
						current.lesson.Link = strings.TrimSpace(strings.TrimPrefix(next, lessonLinkPrefix))
						i++
					}
				}
				continue
			}
		}

		if current != nil {
			buf = append(buf, lines[i])
		}
	}
	flush(&buf)
	return bodies
}

// appendChunks chunks one body and appends the results, prefixing the first
// chunk with its context header. Indices continue from len(chunks).
func (p *Processor) appendChunks(chunks []domain.Chunk, body, courseTitle string, lessonNumber *int) []domain.Chunk {
	pieces := chunkText(body, p.maxChars, p.overlapChars)
	for i, piece := range pieces {
		if i == 0 {
			piece = chunkHeader(lessonNumber) + piece
		}
		chunks = append(chunks, domain.Chunk{
			Content:      piece,
			CourseTitle:  courseTitle,
			LessonNumber: lessonNumber,
			Index:        len(chunks),
		})
	}
	return chunks
}

// chunkHeader names the originating lesson on the first chunk of each
// section so retrieved text keeps its context.
func chunkHeader(lessonNumber *int) string {
	if lessonNumber == nil {
		return "Course content: "
	}
	return fmt.Sprintf("Lesson %d content: ", *lessonNumber)
}
