package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/digitgraph/internal/config"
	"github.com/sanonone/digitgraph/pkg/dataset"
)

func TestOpenSource(t *testing.T) {
	dc := config.Default().Dataset

	src, closeFn, err := openSource(dc)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &dataset.JSONSource{}, src)

	dc.Type = "sqlite"
	dc.SQLitePath = filepath.Join(t.TempDir(), "graph.db")
	src, closeFn, err = openSource(dc)
	require.NoError(t, err)
	require.NoError(t, src.Prime(context.Background()))
	closeFn()
	assert.IsType(t, &dataset.SQLiteSource{}, src)

	dc.Type = "neo4j"
	src, closeFn, err = openSource(dc)
	require.NoError(t, err, "creating the driver does not connect")
	closeFn()
	assert.IsType(t, &dataset.Neo4jSource{}, src)

	dc.Type = "csv"
	_, _, err = openSource(dc)
	assert.Error(t, err)

	dc.Type = "json"
	dc.Precision = "int8"
	_, _, err = openSource(dc)
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
	assert.Nil(t, withExitCode(ExitDataError, nil))

	err := fmt.Errorf("render: %w", withExitCode(ExitDataError, errors.New("node 7 not found")))
	assert.Equal(t, ExitDataError, exitCode(err))
	assert.Equal(t, "render: node 7 not found", err.Error())
}

func TestOpenPrimedSourceReturnsErrors(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	cfg = config.Default()
	cfg.Dataset.NodesPath = filepath.Join(t.TempDir(), "absent.json")
	_, _, err := openPrimedSource(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrPrimeFailed)
	assert.Equal(t, ExitDataError, exitCode(err))

	cfg.Dataset.Type = "csv"
	_, _, err = openPrimedSource(context.Background())
	assert.Equal(t, ExitConfigError, exitCode(err))

	cfg = config.Default()
	cfg.Dataset.Type = "sqlite"
	cfg.Dataset.SQLitePath = filepath.Join(t.TempDir(), "graph.db")
	src, closeFn, err := openPrimedSource(context.Background())
	require.NoError(t, err)
	defer closeFn()
	_, err = src.Vector(context.Background(), "0")
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}
