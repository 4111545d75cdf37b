package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/digitgraph/pkg/distance"
	"github.com/sanonone/digitgraph/pkg/metrics"
)

func primeFailures(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.PrimeFailures.Write(&m))
	return m.GetCounter().GetValue()
}

func vec(v float32) []float32 {
	out := make([]float32, VectorLen)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	for _, prec := range []distance.Precision{distance.Float32, distance.Float16} {
		t.Run(string(prec), func(t *testing.T) {
			s := NewMemoryStore(prec)
			require.NoError(t, s.Put("b", vec(0.5)))
			require.NoError(t, s.Put("a", vec(1)))
			require.NoError(t, s.Put("c", vec(0)))
			s.SetNeighbors("a", []string{"b", "c", "b"})

			got, err := s.Vector(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, vec(0.5), got)

			_, err = s.Vector(ctx, "zzz")
			assert.ErrorIs(t, err, ErrNotFound)

			n, err := s.Neighbors(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c", "b"}, n)

			n, err = s.Neighbors(ctx, "unknown")
			require.NoError(t, err)
			assert.Empty(t, n)

			ids, err := s.List(ctx, "", 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids)

			ids, err = s.List(ctx, "a", 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids)

			count, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, count)
		})
	}
}

func TestMemoryStoreRejectsBadInput(t *testing.T) {
	s := NewMemoryStore(distance.Float32)
	assert.Error(t, s.Put("", vec(0)))
	assert.Error(t, s.Put("x", []float32{1, 2, 3}))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(distance.Float32)
	require.NoError(t, s.Put("a", vec(1)))
	s.SetNeighbors("a", []string{"b"})

	v, _ := s.Vector(ctx, "a")
	v[0] = 42
	again, _ := s.Vector(ctx, "a")
	assert.Equal(t, float32(1), again[0])

	n, _ := s.Neighbors(ctx, "a")
	n[0] = "mutated"
	again2, _ := s.Neighbors(ctx, "a")
	assert.Equal(t, []string{"b"}, again2)
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestJSONSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	nodes := writeJSON(t, dir, "nodes.json", map[string][]float32{"0": vec(0.25), "1": vec(1)})
	graph := writeJSON(t, dir, "graph.json", map[string][]string{"0": {"1", "2"}})

	src := NewJSONSource(nodes, graph, distance.Float32)

	_, err := src.Vector(ctx, "0")
	assert.ErrorIs(t, err, ErrNotPrimed)

	require.NoError(t, src.Prime(ctx))

	v, err := src.Vector(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, vec(0.25), v)

	n, err := src.Neighbors(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, n)

	// "2" is listed as a neighbor but has no vector.
	_, err = src.Vector(ctx, "2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONSourcePrimeFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		src := NewJSONSource(filepath.Join(dir, "nope.json"), "", distance.Float32)
		assert.ErrorIs(t, src.Prime(ctx), ErrPrimeFailed)
	})

	t.Run("wrong vector length", func(t *testing.T) {
		nodes := writeJSON(t, dir, "short.json", map[string][]float32{"0": {1, 2}})
		src := NewJSONSource(nodes, "", distance.Float32)
		assert.ErrorIs(t, src.Prime(ctx), ErrPrimeFailed)
	})

	t.Run("malformed graph", func(t *testing.T) {
		nodes := writeJSON(t, dir, "ok.json", map[string][]float32{"0": vec(0)})
		graph := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(graph, []byte("{not json"), 0o644))
		src := NewJSONSource(nodes, graph, distance.Float32)
		assert.ErrorIs(t, src.Prime(ctx), ErrPrimeFailed)
	})
}

type countingSource struct {
	*MemoryStore
	primes atomic.Int32
	err    error
}

func (c *countingSource) Prime(ctx context.Context) error {
	c.primes.Add(1)
	return c.err
}

func TestOncePrimesOnce(t *testing.T) {
	inner := &countingSource{MemoryStore: NewMemoryStore(distance.Float32)}
	src := Once(inner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, src.Prime(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.primes.Load())
	assert.Same(t, src, Once(src))
}

func TestOnceWrapsFailure(t *testing.T) {
	inner := &countingSource{MemoryStore: NewMemoryStore(distance.Float32), err: errors.New("disk on fire")}
	src := Once(inner)

	before := primeFailures(t)

	err := src.Prime(context.Background())
	assert.ErrorIs(t, err, ErrPrimeFailed)
	assert.ErrorIs(t, src.Prime(context.Background()), ErrPrimeFailed)
	assert.Equal(t, int32(1), inner.primes.Load())
	assert.Equal(t, before+1, primeFailures(t))
}

func TestOnceForwardsListing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(distance.Float32)
	require.NoError(t, store.Put("a", vec(0)))
	src := Once(store)

	ids, err := src.(Lister).List(ctx, "", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	n, err := src.(Counter).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	src := NewSQLiteSource(filepath.Join(t.TempDir(), "graph.db"))

	_, err := src.Vector(ctx, "0")
	assert.ErrorIs(t, err, ErrNotPrimed)

	require.NoError(t, src.Prime(ctx))
	defer src.Close()

	store := NewMemoryStore(distance.Float32)
	require.NoError(t, store.Put("0", vec(0.5)))
	require.NoError(t, store.Put("1", vec(1)))
	store.SetNeighbors("0", []string{"1", "7", "1"})
	store.SetNeighbors("9", []string{"0"})

	n, err := src.Import(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := src.Vector(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, vec(0.5), v)

	_, err = src.Vector(ctx, "7")
	assert.ErrorIs(t, err, ErrNotFound)

	neighbors, err := src.Neighbors(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "7", "1"}, neighbors)

	neighbors, err = src.Neighbors(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, neighbors)

	neighbors, err = src.Neighbors(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	ids, err := src.List(ctx, "0", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	count, err := src.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-importing replaces adjacency rows instead of duplicating them.
	store.SetNeighbors("0", []string{"1"})
	_, err = src.Import(ctx, store)
	require.NoError(t, err)
	neighbors, err = src.Neighbors(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, neighbors)
}

func TestSQLiteSourceRejectsShortVector(t *testing.T) {
	ctx := context.Background()
	src := NewSQLiteSource(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, src.Prime(ctx))
	defer src.Close()

	db, err := src.conn()
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO nodes (id, vector) VALUES (?, ?)`,
		"0", encodeVector(make([]float32, 10)))
	require.NoError(t, err)

	_, err = src.Vector(ctx, "0")
	assert.ErrorIs(t, err, ErrBadVector)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCheckVector(t *testing.T) {
	assert.NoError(t, CheckVector("0", vec(0)))
	assert.ErrorIs(t, CheckVector("0", nil), ErrBadVector)
	assert.ErrorIs(t, CheckVector("0", make([]float32, VectorLen+1)), ErrBadVector)
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, 1, -2.25}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

type fakeRunner struct {
	queries []string
	result  *neo4j.EagerResult
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func nodeRecord(key string, props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{key},
		Values: []any{neo4j.Node{Labels: []string{"Digit"}, Props: props}},
	}
}

func TestNeo4jSourceVector(t *testing.T) {
	ctx := context.Background()
	raw := make([]any, VectorLen)
	for i := range raw {
		raw[i] = 0.5
	}
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Records: []*neo4j.Record{nodeRecord("n", map[string]any{"id": "0", "vector": raw})},
	}}
	src := NewNeo4jSource(runner, "", "")

	require.NoError(t, src.Prime(ctx))

	v, err := src.Vector(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, vec(0.5), v)
	require.Len(t, runner.queries, 1)
	assert.Contains(t, runner.queries[0], "Digit")
}

func TestNeo4jSourceVectorMissing(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{}}
	src := NewNeo4jSource(runner, "Digit", "SIMILAR")

	_, err := src.Vector(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNeo4jSourceRejectsShortVector(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Records: []*neo4j.Record{nodeRecord("n", map[string]any{"id": "0", "vector": []any{0.5, 0.5}})},
	}}
	src := NewNeo4jSource(runner, "Digit", "SIMILAR")

	_, err := src.Vector(context.Background(), "0")
	assert.ErrorIs(t, err, ErrBadVector)
}

func TestNeo4jSourceNeighbors(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Records: []*neo4j.Record{
			nodeRecord("m", map[string]any{"id": "3"}),
			nodeRecord("m", map[string]any{"id": "5"}),
			nodeRecord("m", map[string]any{"id": "3"}),
		},
	}}
	src := NewNeo4jSource(runner, "Digit", "SIMILAR")

	n, err := src.Neighbors(context.Background(), "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "5", "3"}, n)
	assert.Contains(t, runner.queries[0], "SIMILAR")
}

func TestNeo4jSourceRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection refused")}
	src := NewNeo4jSource(runner, "", "")

	_, err := src.Neighbors(context.Background(), "0")
	assert.Error(t, err)
}

func TestToFloat32s(t *testing.T) {
	got, err := toFloat32s([]any{1.0, int64(0)})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got)

	_, err = toFloat32s([]any{"x"})
	assert.Error(t, err)
	_, err = toFloat32s("nope")
	assert.Error(t, err)
}
