package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"coursechat/internal/domain"
)

// Collection layout: course_catalog holds one point per course keyed by a
// deterministic UUID derived from the title, so re-adding a course overwrites
// its catalog entry. course_content holds one point per chunk with random
// ids; idempotency there is handled by deleting a course before re-adding.
const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"

	defaultSearchLimit = 5
	scrollPageSize     = 1000
)

// StoreConfig configures the Qdrant-backed course index.
type StoreConfig struct {
	Host     string
	Port     int
	Embedder domain.Embedder
	Logger   *slog.Logger
}

// Store persists course metadata and content chunks in Qdrant and serves
// filtered semantic search over them.
type Store struct {
	client   *qdrant.Client
	embedder domain.Embedder
	logger   *slog.Logger
}

var _ domain.CourseIndex = (*Store)(nil)

// NewStore connects to Qdrant. It does not create collections; call
// EnsureCollections before the first write.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("store requires an embedder")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	return &Store{
		client:   client,
		embedder: cfg.Embedder,
		logger:   cfg.Logger.With("component", "knowledge"),
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollections creates the catalog and content collections when they do
// not exist yet. Vector size follows the configured embedder.
func (s *Store) EnsureCollections(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, name := range []string{catalogCollection, contentCollection} {
		if have[name] {
			continue
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.embedder.Dimension()),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		s.logger.Info("created collection", "name", name, "dimension", s.embedder.Dimension())
	}
	return nil
}

// AddCourse upserts the course's catalog entry. The point id is derived from
// the title, so calling this twice for the same course replaces the entry.
func (s *Store) AddCourse(ctx context.Context, course domain.Course) error {
	if course.Title == "" {
		return fmt.Errorf("course has no title")
	}

	vecs, err := s.embedder.Embed(ctx, []string{course.Title})
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	lessons, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(catalogPointID(course.Title)),
		Vectors: qdrant.NewVectors(vecs[0]...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"title":        course.Title,
			"instructor":   course.Instructor,
			"course_link":  course.Link,
			"lesson_count": len(course.Lessons),
			"lessons":      string(lessons),
		}),
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: catalogCollection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

// AddChunks embeds chunk contents and stores them in the content collection.
func (s *Store) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]interface{}{
			"content":      c.Content,
			"course_title": c.CourseTitle,
			"chunk_index":  c.Index,
		}
		if c.LessonNumber != nil {
			payload["lesson_number"] = *c.LessonNumber
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vecs[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: contentCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}

	s.logger.Debug("stored chunks", "count", len(chunks), "course", chunks[0].CourseTitle)
	return nil
}

// Search ranks content chunks by similarity to query. A non-empty courseName
// is resolved against the catalog first, so partial names work; resolution
// failure is an error rather than an empty result, because the caller needs
// to tell the model the filter was wrong. A nil lessonNumber means no lesson
// filter.
func (s *Store) Search(ctx context.Context, query string, courseName string, lessonNumber *int, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var conditions []*qdrant.Condition
	if courseName != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, qdrant.NewMatch("course_title", title))
	}
	if lessonNumber != nil {
		conditions = append(conditions, qdrant.NewMatchInt("lesson_number", int64(*lessonNumber)))
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	req := &qdrant.QueryPoints{
		CollectionName: contentCollection,
		Query:          qdrant.NewQuery(vecs[0]...),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	limit64 := uint64(limit)
	req.Limit = &limit64
	if len(conditions) > 0 {
		req.Filter = &qdrant.Filter{Must: conditions}
	}

	hits, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		chunk := domain.ScoredChunk{
			Content:     payload["content"].GetStringValue(),
			CourseTitle: payload["course_title"].GetStringValue(),
			Index:       int(payload["chunk_index"].GetIntegerValue()),
			Score:       hit.GetScore(),
		}
		if v, ok := payload["lesson_number"]; ok {
			n := int(v.GetIntegerValue())
			chunk.LessonNumber = &n
		}
		results = append(results, chunk)
	}
	return results, nil
}

// ResolveCourseName maps a possibly partial or misspelled course name to the
// closest catalog title using vector similarity over the titles themselves.
// The best match wins regardless of score; only an empty catalog yields a
// *domain.CourseNotFoundError.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vecs, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}

	limit := uint64(1)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: catalogCollection,
		Query:          qdrant.NewQuery(vecs[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", fmt.Errorf("query catalog: %w", err)
	}
	if len(hits) == 0 {
		return "", &domain.CourseNotFoundError{Name: name}
	}
	return hits[0].GetPayload()["title"].GetStringValue(), nil
}

// CourseOutline returns the catalog entry for an exact title, including the
// parsed lesson list.
func (s *Store) CourseOutline(ctx context.Context, title string) (*domain.Course, error) {
	points, err := s.scrollCatalog(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("title", title)},
	})
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, &domain.CourseNotFoundError{Name: title}
	}
	return courseFromPayload(points[0].GetPayload())
}

// ListCourseTitles returns every catalog title.
func (s *Store) ListCourseTitles(ctx context.Context) ([]string, error) {
	points, err := s.scrollCatalog(ctx, nil)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(points))
	for _, p := range points {
		if t := p.GetPayload()["title"].GetStringValue(); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// CourseCount reports how many courses are in the catalog.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	titles, err := s.ListCourseTitles(ctx)
	if err != nil {
		return 0, err
	}
	return len(titles), nil
}

// LessonLink returns the stored link for a lesson, or "" when the lesson
// exists without one.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	course, err := s.CourseOutline(ctx, courseTitle)
	if err != nil {
		return "", err
	}
	for _, l := range course.Lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", nil
}

// DeleteCourse removes the catalog entry and every chunk of the named course.
// Deleting a course that does not exist is not an error.
func (s *Store) DeleteCourse(ctx context.Context, title string) error {
	if err := s.deleteByFilter(ctx, catalogCollection, "title", title); err != nil {
		return err
	}
	if err := s.deleteByFilter(ctx, contentCollection, "course_title", title); err != nil {
		return err
	}
	s.logger.Info("deleted course", "title", title)
	return nil
}

// Clear drops both collections and recreates them empty.
func (s *Store) Clear(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range existing {
		if name != catalogCollection && name != contentCollection {
			continue
		}
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
	}
	return s.EnsureCollections(ctx)
}

func (s *Store) scrollCatalog(ctx context.Context, filter *qdrant.Filter) ([]*qdrant.RetrievedPoint, error) {
	limit := uint32(scrollPageSize)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: catalogCollection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll catalog: %w", err)
	}
	return points, nil
}

func (s *Store) deleteByFilter(ctx context.Context, collection, field, value string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch(field, value)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

func courseFromPayload(payload map[string]*qdrant.Value) (*domain.Course, error) {
	course := &domain.Course{
		Title:      payload["title"].GetStringValue(),
		Instructor: payload["instructor"].GetStringValue(),
		Link:       payload["course_link"].GetStringValue(),
	}
	raw := payload["lessons"].GetStringValue()
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return nil, fmt.Errorf("unmarshal lessons: %w", err)
		}
	}
	return course, nil
}

// catalogPointID derives a stable UUID from the course title so the catalog
// keeps at most one point per course.
func catalogPointID(title string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(title)).String()
}
