package memory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// Fixtures is the YAML layout used to seed a registry:
//
//	types:
//	  - name: article
//	    pk: id
//	    fields: {title: text, views: numeric}
//	    records:
//	      - {id: 1, title: Rust guide, views: 10}
type Fixtures struct {
	Types []FixtureType `yaml:"types"`
}

// FixtureType is one record type with its records.
type FixtureType struct {
	Name    string           `yaml:"name"`
	PK      string           `yaml:"pk"`
	Fields  yaml.Node        `yaml:"fields"`
	Records []map[string]any `yaml:"records"`
}

// LoadFile reads a fixtures file into a new registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return LoadYAML(data)
}

// LoadYAML parses fixtures into a new registry. Field order follows the YAML mapping order.
func LoadYAML(data []byte) (*Registry, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	reg := New()
	for _, ft := range fx.Types {
		fields, err := parseFields(&ft.Fields)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", ft.Name, err)
		}
		t, err := record.NewType(ft.Name, fields)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}

		pk := ft.PK
		if pk == "" {
			pk = "id"
		}
		recs := make([]record.Record, 0, len(ft.Records))
		for i, values := range ft.Records {
			id, ok := values[pk]
			if !ok {
				return nil, fmt.Errorf("type %s: record %d has no %q", ft.Name, i, pk)
			}
			recs = append(recs, record.New(ft.Name, fmt.Sprint(id), values))
		}
		if err := reg.Load(ft.Name, recs...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func parseFields(node *yaml.Node) ([]field.Field, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fields must be a mapping of name to type")
	}
	out := make([]field.Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		ft, err := field.ParseType(node.Content[i+1].Value)
		if err != nil {
			return nil, err
		}
		f, err := field.New(node.Content[i].Value, ft)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
