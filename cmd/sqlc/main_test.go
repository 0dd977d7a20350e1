package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestPackageFor(t *testing.T) {
	file := filepath.Join("internal", "journal", "order_events", "sql", "query.sql")
	pkg, out, err := packageFor(file)
	require.NoError(t, err)
	assert.Equal(t, "sql", pkg)
	assert.Equal(t, filepath.Join("internal", "journal", "order_events", "sql")+string(os.PathSeparator), out)

	_, _, err = packageFor("query.sql")
	assert.Error(t, err)
}

func TestRenderConfig(t *testing.T) {
	engine := viper.New()
	engine.Set("engine", "postgresql")
	engine.Set("schema", "migrations")
	engine.Set("source", []string{"x"})

	file := filepath.Join("a", "sql", "query.sql")
	bs, err := renderConfig("2", engine, file)
	require.NoError(t, err)

	var got struct {
		Version string                   `yaml:"version"`
		SQL     []map[string]interface{} `yaml:"sql"`
	}
	require.NoError(t, yaml.Unmarshal(bs, &got))
	assert.Equal(t, "2", got.Version)
	require.Len(t, got.SQL, 1)
	assert.Equal(t, file, got.SQL[0]["queries"])
	assert.NotContains(t, got.SQL[0], "source")
}
