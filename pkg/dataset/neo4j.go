package dataset

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Runner executes a Cypher query and returns a fully buffered result.
// It is satisfied by Neo4jExecutor and by fakes in tests.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Neo4jExecutor runs queries against a Neo4j database through the official driver.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewNeo4jExecutor creates a driver for uri with basic auth. No connection is
// made until the first query or Verify.
func NewNeo4jExecutor(uri, username, password, dbName string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: dbName}, nil
}

// Verify checks connectivity to the database.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Run executes query with automatic session and transaction management.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

// Close releases the driver.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Neo4jSource reads the graph from nodes shaped like
// (:Digit {id: "0", vector: [...]})-[:SIMILAR]->(:Digit).
type Neo4jSource struct {
	runner   Runner
	label    string
	relation string
}

// NewNeo4jSource creates a source over runner. Empty label and relation
// default to "Digit" and "SIMILAR".
func NewNeo4jSource(runner Runner, label, relation string) *Neo4jSource {
	if label == "" {
		label = "Digit"
	}
	if relation == "" {
		relation = "SIMILAR"
	}
	return &Neo4jSource{runner: runner, label: label, relation: relation}
}

// Prime verifies connectivity when the runner supports it.
func (s *Neo4jSource) Prime(ctx context.Context) error {
	v, ok := s.runner.(interface{ Verify(context.Context) error })
	if !ok {
		return nil
	}
	if err := v.Verify(ctx); err != nil {
		return fmt.Errorf("%w: neo4j connectivity: %w", ErrPrimeFailed, err)
	}
	return nil
}

// Vector returns the "vector" property of the node with the given id.
func (s *Neo4jSource) Vector(ctx context.Context, id string) ([]float32, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", s.label).WithProperties(map[string]interface{}{"id": id})).
		Return("n").
		Build()
	if err != nil {
		return nil, fmt.Errorf("building vector query: %w", err)
	}

	result, err := s.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}

	value, ok := result.Records[0].Get("n")
	if !ok {
		return nil, fmt.Errorf("could not find return value 'n' in query result")
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("return value 'n' is not a node")
	}
	raw, ok := node.Props["vector"]
	if !ok {
		return nil, ErrNotFound
	}
	vec, err := toFloat32s(raw)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	if err := CheckVector(id, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Neighbors returns the ids of all nodes reachable over one outgoing
// relationship. Parallel relationships yield repeated ids.
func (s *Neo4jSource) Neighbors(ctx context.Context, id string) ([]string, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", s.label).WithProperties(map[string]interface{}{"id": id})).
		Match(
			gocypher.NRef("n"),
			gocypher.R("r", s.relation).To(),
			gocypher.N("m", s.label),
		).
		Return("m").
		Build()
	if err != nil {
		return nil, fmt.Errorf("building neighbor query: %w", err)
	}

	result, err := s.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	neighbors := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		value, ok := record.Get("m")
		if !ok {
			continue
		}
		node, ok := value.(neo4j.Node)
		if !ok {
			continue
		}
		if nid, ok := node.Props["id"].(string); ok {
			neighbors = append(neighbors, nid)
		}
	}
	return neighbors, nil
}

// toFloat32s converts a Neo4j list property into a vector.
func toFloat32s(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, x := range v {
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case int64:
				out[i] = float32(n)
			default:
				return nil, fmt.Errorf("vector element %d has type %T", i, x)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("vector property has type %T", raw)
}
