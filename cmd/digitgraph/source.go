package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanonone/digitgraph/internal/config"
	"github.com/sanonone/digitgraph/pkg/dataset"
	"github.com/sanonone/digitgraph/pkg/distance"
)

// openSource builds the configured data source. The returned close function
// releases any connection it holds and is never nil.
func openSource(dc config.DatasetConfig) (dataset.Source, func(), error) {
	precision, err := distance.ParsePrecision(dc.Precision)
	if err != nil {
		return nil, nil, err
	}

	switch dc.Type {
	case "json":
		return dataset.NewJSONSource(dc.NodesPath, dc.GraphPath, precision), func() {}, nil

	case "sqlite":
		src := dataset.NewSQLiteSource(dc.SQLitePath)
		return src, func() {
			if err := src.Close(); err != nil {
				slog.Error("Closing SQLite dataset", "error", err)
			}
		}, nil

	case "neo4j":
		n := dc.Neo4j
		exec, err := dataset.NewNeo4jExecutor(n.URI, n.Username, n.Password, n.Database)
		if err != nil {
			return nil, nil, err
		}
		return dataset.NewNeo4jSource(exec, n.Label, n.Relation), func() {
			if err := exec.Close(context.Background()); err != nil {
				slog.Error("Closing Neo4j driver", "error", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown dataset type '%s'", dc.Type)
}

// openPrimedSource opens the configured source and loads it. Later Prime
// calls on the returned source are no-ops. On error the source is already
// closed.
func openPrimedSource(ctx context.Context) (dataset.Source, func(), error) {
	raw, closeFn, err := openSource(cfg.Dataset)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, fmt.Errorf("opening dataset: %w", err))
	}
	src := dataset.Once(raw)
	if err := src.Prime(ctx); err != nil {
		closeFn()
		return nil, nil, withExitCode(ExitDataError, fmt.Errorf("loading dataset: %w", err))
	}
	return src, closeFn, nil
}
