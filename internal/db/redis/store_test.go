package redis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/luma-stream/mediadex/internal/db"
	"github.com/luma-stream/mediadex/internal/domain"
)

// newMockStore wires a Store to a gomock-backed rueidis client.
func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for missing addrs")
	}
}

// --- hash.go tests ---

func TestHSet_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "mykey"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	if err := s.HSet(context.Background(), "mykey", map[string]string{"f1": "v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"a": "1"}},
		{Key: "k2", Fields: map[string]string{"b": "2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialFailure(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"a": "1"}},
		{Key: "k2", Fields: map[string]string{"b": "2"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s, _ := newMockStore(t)

	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelMulti_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "k1", "k2")).
		Return(mock.Result(mock.RedisInt64(2)))

	if err := s.DelMulti(context.Background(), []string{"k1", "k2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- kv.go tests ---

func TestGet_KeyNotFound(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGetSet_RoundTrip(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisString("v")))

	if err := s.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q, want v", got)
	}
}

func TestSet_WithTTL(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
}

// --- index.go tests ---

func chunkIndexDef() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     "idx",
		Prefixes: []string{"chunk:"},
		Fields: []db.IndexField{
			{Name: db.FieldVector, Type: db.IndexFieldVector, VectorDim: 4, VectorDistance: db.DistanceCosine},
			{Name: db.FieldContent, Type: db.IndexFieldText},
			{Name: db.FieldVideoID, Type: db.IndexFieldTag},
			{Name: db.FieldPublishedAt, Type: db.IndexFieldNumeric},
		},
	}
}

func TestCreateIndex_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "idx"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.CreateIndex(context.Background(), chunkIndexDef()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("Index already exists")))

	err := s.CreateIndex(context.Background(), chunkIndexDef())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestIndexExists_UnknownIndex(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	exists, err := s.IndexExists(context.Background(), "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected index to not exist")
	}
}

func TestIndexInfo_ParsesCounts(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("num_docs"),
			mock.RedisString("123"),
			mock.RedisString("vector_index_sz_mb"),
			mock.RedisString("4.5"),
		)))

	info, err := s.IndexInfo(context.Background(), "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NumDocs != 123 {
		t.Errorf("num docs = %d, want 123", info.NumDocs)
	}
	if info.IndexSizeMB != 4.5 {
		t.Errorf("index size = %v, want 4.5", info.IndexSizeMB)
	}
}

func TestBuildCreateArgs_VectorDefaults(t *testing.T) {
	args, err := createArgs(chunkIndexDef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{"VECTOR HNSW 12", "DIM 4", "DISTANCE_METRIC COSINE", "M 16", "EF_CONSTRUCTION 200", "PREFIX 1 chunk:"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}

// --- search.go tests ---

func TestSearchKNN_BuildsQueryAndParses(t *testing.T) {
	s, c := newMockStore(t)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("chunk:a"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"),
				mock.RedisString("content"),
				mock.RedisString("hello"),
			),
		)))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{0.1, 0.2},
		K:            100,
		ReturnFields: []string{db.FieldContent, db.FieldVectorScore},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured[2] != "*=>[KNN 100 @vector $BLOB]" {
		t.Errorf("query = %q", captured[2])
	}
	if !argsContain(captured, "SORTBY", "__vector_score") {
		t.Errorf("missing SORTBY in %v", captured)
	}
	if !argsContain(captured, "LIMIT", "0") {
		t.Errorf("missing LIMIT in %v", captured)
	}
	if !argsContain(captured, "DIALECT", "2") {
		t.Errorf("missing DIALECT in %v", captured)
	}

	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Key != "chunk:a" {
		t.Errorf("key = %q", e.Key)
	}
	if math.Abs(e.Score-0.9) > 1e-9 {
		t.Errorf("score = %v, want 0.9 (1 - distance)", e.Score)
	}
	if e.Fields["content"] != "hello" {
		t.Errorf("content = %q", e.Fields["content"])
	}
	if _, ok := e.Fields["__vector_score"]; ok {
		t.Error("raw score field should be stripped")
	}
}

func TestSearchKNN_L2Score(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("chunk:a"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("7.31"),
			),
		)))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1, 0.2},
		K:         10,
		Distance:  db.DistanceL2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	// L2 distances exceed 1 routinely; 1-dist would clamp every hit to 0
	// and the minScore gate would drop the whole vector leg.
	want := 1 / (1 + 7.31)
	if math.Abs(res.Entries[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v (1/(1+distance))", res.Entries[0].Score, want)
	}
	if res.Entries[0].Score <= 0 {
		t.Error("L2 score must stay positive to preserve ranking")
	}
}

func TestSearchKNN_WithFilter(t *testing.T) {
	s, c := newMockStore(t)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         10,
		Filters:   domain.Filters{VideoID: "vid-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured[2] != "(@video_id:{vid\\-1})=>[KNN 10 @vector $BLOB]" {
		t.Errorf("query = %q", captured[2])
	}
}

func TestSearchKNN_ClampsNegativeScore(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("chunk:a"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("1.7"),
			),
		)))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{0.1}, K: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Entries[0].Score != 0 {
		t.Errorf("score = %v, want 0", res.Entries[0].Score)
	}
}

func TestSearchBM25_BuildsQueryAndParses(t *testing.T) {
	s, c := newMockStore(t)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("chunk:b"),
			mock.RedisString("2.5"),
			mock.RedisArray(
				mock.RedisString("content"),
				mock.RedisString("database indexing"),
			),
		)))

	res, err := s.SearchBM25(context.Background(), &db.TextQuery{
		IndexName: "idx",
		Query:     "database indexing",
		TopK:      5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured[2] != "@content:(database indexing)" {
		t.Errorf("query = %q", captured[2])
	}
	if !argsContain(captured, "WITHSCORES", "LIMIT") {
		t.Errorf("missing WITHSCORES/LIMIT in %v", captured)
	}

	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	if res.Entries[0].Score != 2.5 {
		t.Errorf("score = %v, want 2.5", res.Entries[0].Score)
	}
}

func TestSearchBM25_EscapesSpecialChars(t *testing.T) {
	s, c := newMockStore(t)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return true
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	_, err := s.SearchBM25(context.Background(), &db.TextQuery{
		IndexName: "idx",
		Query:     "what is k8s? (probably)",
		TopK:      5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured[2] != `@content:(what is k8s? \(probably\))` {
		t.Errorf("query = %q", captured[2])
	}
}

func argsContain(args []string, wants ...string) bool {
	for _, w := range wants {
		found := false
		for _, a := range args {
			if a == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// --- filter tests ---

func TestFilterExpr(t *testing.T) {
	after := time.Unix(1700000000, 0)
	before := time.Unix(1800000000, 0)
	minStart := 30.0
	maxStart := 90.0

	tests := []struct {
		name string
		in   domain.Filters
		want string
	}{
		{"empty", domain.Filters{}, ""},
		{"video", domain.Filters{VideoID: "v1"}, "@video_id:{v1}"},
		{"playlist", domain.Filters{PlaylistID: "p1"}, "@playlist_id:{p1}"},
		{
			"published range",
			domain.Filters{PublishedAfter: &after, PublishedBefore: &before},
			"@published_at:[1.7e+09 1.8e+09]",
		},
		{
			"published open upper",
			domain.Filters{PublishedAfter: &after},
			"@published_at:[1.7e+09 +inf]",
		},
		{
			"start time",
			domain.Filters{StartTime: &domain.NumericRange{Min: &minStart, Max: &maxStart}},
			"@start_time:[30 90]",
		},
		{
			"combined",
			domain.Filters{VideoID: "v1", PlaylistID: "p1"},
			"@video_id:{v1} @playlist_id:{p1}",
		},
		{
			"extra keys sorted",
			domain.Filters{Extra: map[string]string{"b": "2", "a": "1"}},
			"@a:{1} @b:{2}",
		},
		{
			"tag escaping",
			domain.Filters{VideoID: "a-b.c"},
			`@video_id:{a\-b\.c}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := filterExpr(tc.in); got != tc.want {
				t.Errorf("filterExpr() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPackVector(t *testing.T) {
	got := packVector([]float32{1.0})
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	// 1.0 as little-endian float32 is 00 00 80 3f.
	if got[0] != 0x00 || got[1] != 0x00 || got[2] != 0x80 || got[3] != 0x3f {
		t.Errorf("bytes = % x", got)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s, _ := newMockStore(t)

	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{Vector: []float32{1}, K: 1}); err == nil {
		t.Error("expected error for missing index name")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", K: 1}); err == nil {
		t.Error("expected error for missing vector")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}}); err == nil {
		t.Error("expected error for non-positive k")
	}
}
