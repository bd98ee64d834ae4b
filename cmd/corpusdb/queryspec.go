package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/exec"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// NodeSpec describes one leaf search of a query file.
type NodeSpec struct {
	// Kind is value, key or regex.
	Kind  string `yaml:"kind"`
	NS    string `yaml:"ns"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// OperatorSpec describes one operator entry of a query file.
type OperatorSpec struct {
	Op    string `yaml:"op"`
	Left  int    `yaml:"left"`
	Right int    `yaml:"right"`

	Min uint32 `yaml:"min"`
	Max uint32 `yaml:"max"`
	// MaxUnbounded sets the upper distance to unlimited.
	MaxUnbounded bool `yaml:"max_unbounded"`

	Layer string `yaml:"layer"`
	Name  string `yaml:"name"`

	EdgeAnnoName  string `yaml:"edge_anno_name"`
	EdgeAnnoValue string `yaml:"edge_anno_value"`

	ForceNestedLoop bool `yaml:"force_nested_loop"`
}

// QuerySpec is the YAML rendition of a parsed query.
type QuerySpec struct {
	Nodes     []NodeSpec     `yaml:"nodes"`
	Operators []OperatorSpec `yaml:"operators"`
}

// LoadQuerySpec reads a query file.
func LoadQuerySpec(path string) (*QuerySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	var spec QuerySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse query file: %w", err)
	}
	return &spec, nil
}

// Build assembles an executable query from the spec.
func (spec *QuerySpec) Build(db *corpus.DB, config exec.QueryConfig) (*exec.Query, error) {
	query := exec.NewQuery(db, config)

	for i, n := range spec.Nodes {
		var search annosearch.EstimatedSearch
		switch n.Kind {
		case "value", "":
			search = annosearch.NewExactAnnoValueSearch(db, n.NS, n.Name, n.Value)
		case "key":
			search = annosearch.NewExactAnnoKeySearch(db, n.NS, n.Name)
		case "regex":
			search = annosearch.NewRegexAnnoValueSearch(db, n.NS, n.Name, n.Value)
		default:
			return nil, fmt.Errorf("node %d: unknown kind %q", i, n.Kind)
		}

		// a bare key search stands for the node itself
		wrapAnyNode := n.Kind == "key" && n.Name == graph.NodeNameLabel
		query.AddNode(search, wrapAnyNode)
	}

	for i, o := range spec.Operators {
		min, max := o.Min, o.Max
		if min == 0 && max == 0 {
			min, max = 1, 1
		}
		if o.MaxUnbounded {
			max = graphstorage.MaxDistance
		}

		var edgeAnno graph.Annotation
		if o.EdgeAnnoName != "" {
			name, _ := db.Strings.FindID(o.EdgeAnnoName)
			value, _ := db.Strings.FindID(o.EdgeAnnoValue)
			edgeAnno = graph.Annotation{Name: name, Value: value}
		}

		var op operators.Operator
		switch o.Op {
		case "precedence":
			op = operators.NewPrecedence(db, min, max)
		case "dominance":
			if edgeAnno != (graph.Annotation{}) {
				op = operators.NewDominanceWithAnno(db, o.Layer, o.Name, min, max, edgeAnno)
			} else {
				op = operators.NewDominance(db, o.Layer, o.Name, min, max)
			}
		case "pointing":
			if edgeAnno != (graph.Annotation{}) {
				op = operators.NewPointingWithAnno(db, o.Layer, o.Name, min, max, edgeAnno)
			} else {
				op = operators.NewPointing(db, o.Layer, o.Name, min, max)
			}
		case "inclusion":
			op = operators.NewInclusion(db)
		case "overlap":
			op = operators.NewOverlap(db)
		case "identical_coverage":
			op = operators.NewIdenticalCoverage(db)
		case "identical_node":
			op = operators.NewIdenticalNode()
		default:
			return nil, fmt.Errorf("operator %d: unknown op %q", i, o.Op)
		}

		query.AddOperator(op, o.Left, o.Right, o.ForceNestedLoop)
	}

	return query, nil
}
