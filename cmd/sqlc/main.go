// sqlc прогоняет генерацию по каждому query.sql отдельно: у каждого
// пакета журнала свой gen.go.package и свой каталог вывода.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const generatedConfigName = "sqlc.yaml"

// packageFor: .../order_events/sql/query.sql -> package "sql", out ".../order_events/sql/"
func packageFor(file string) (pkg, out string, err error) {
	dir, _ := filepath.Split(file)
	parts := strings.Split(strings.TrimSuffix(dir, string(os.PathSeparator)), string(os.PathSeparator))
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return "", "", errors.Errorf("no package dir for %s", file)
	}
	return parts[len(parts)-1], dir, nil
}

func renderConfig(version string, engine *viper.Viper, file string) ([]byte, error) {
	pkg, out, err := packageFor(file)
	if err != nil {
		return nil, err
	}
	engine.Set("gen.go.package", pkg)
	engine.Set("gen.go.out", out)
	engine.Set("queries", file)

	settings := engine.AllSettings()
	delete(settings, "source")

	result := viper.New()
	result.Set("version", version)
	result.Set("sql", []interface{}{settings})

	bs, err := yaml.Marshal(result.AllSettings())
	if err != nil {
		return nil, errors.Wrap(err, "marshal config to yaml")
	}
	return bs, nil
}

func callSqlc(config string) error {
	output, err := exec.Command("sqlc", "generate", "--file", config).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "sqlc generate: %s", string(output))
	}
	return nil
}

func expandSources(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		f, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %s", pattern)
		}
		files = append(files, f...)
	}
	return files, nil
}

func run(base string, dryRun bool) error {
	v := viper.New()
	v.SetConfigFile(base)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "read base config")
	}

	files, err := expandSources(v.GetStringSlice("sql.0.source"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("sql.0.source matched no files")
	}

	engine := v.Sub("sql.0")
	engine.Set("schema", v.GetString("sql.0.schema"))

	defer os.Remove(generatedConfigName)
	for _, file := range files {
		bs, err := renderConfig(v.GetString("version"), engine, file)
		if err != nil {
			return errors.Wrap(err, file)
		}
		if dryRun {
			fmt.Printf("--- %s\n%s", file, bs)
			continue
		}
		if err := os.WriteFile(generatedConfigName, bs, 0o644); err != nil {
			return errors.Wrap(err, "write sqlc.yaml")
		}
		if err := callSqlc(generatedConfigName); err != nil {
			return err
		}
		fmt.Printf("%s done\n", file)
	}
	return nil
}

func main() {
	base := flag.String("base", ".sqlc.base.yaml", "base sqlc config")
	dryRun := flag.Bool("dry-run", false, "print generated configs, don't call sqlc")
	flag.Parse()

	if err := run(*base, *dryRun); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
