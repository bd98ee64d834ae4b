package exec

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Non-parallel join variants selectable through QueryConfig.
const (
	JoinIndex      = "index"
	JoinSeed       = "seed"
	JoinNestedLoop = "nestedloop"
)

// QueryConfig selects the join strategy and optimizer knobs for one
// query. The zero value is normalized to the defaults.
type QueryConfig struct {
	// Optimize enables the operand-swap pass for commutative operators.
	Optimize bool `yaml:"optimize"`

	// AvoidNestedBySwitch lets the planner swap commutative operands to
	// turn a nested-loop join into a seed join.
	AvoidNestedBySwitch bool `yaml:"avoid_nested_by_switch"`

	// NonParallelJoin picks the join variant used without a thread pool:
	// index (default), seed or nestedloop.
	NonParallelJoin string `yaml:"non_parallel_join"`

	// ParallelTasks enables the task index join with a pool of this many
	// workers. Zero disables parallel execution.
	ParallelTasks int `yaml:"parallel_tasks"`

	// MaxBufferedTasks bounds the in-flight tasks of the task index
	// join.
	MaxBufferedTasks int `yaml:"max_buffered_tasks"`
}

// DefaultQueryConfig returns the default configuration: optimized,
// single-threaded index joins.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		Optimize:            true,
		AvoidNestedBySwitch: true,
		NonParallelJoin:     JoinIndex,
		ParallelTasks:       0,
		MaxBufferedTasks:    128,
	}
}

// ParallelQueryConfig returns a configuration using the task index join
// with one worker per CPU.
func ParallelQueryConfig() QueryConfig {
	c := DefaultQueryConfig()
	c.ParallelTasks = runtime.NumCPU()
	return c
}

// Normalize fills unset fields with their defaults.
func (c *QueryConfig) Normalize() {
	if c.NonParallelJoin == "" {
		c.NonParallelJoin = JoinIndex
	}
	if c.MaxBufferedTasks <= 0 {
		c.MaxBufferedTasks = 128
	}
	if c.ParallelTasks < 0 {
		c.ParallelTasks = 0
	}
}

// LoadQueryConfig reads a YAML config file.
func LoadQueryConfig(path string) (QueryConfig, error) {
	config := DefaultQueryConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read query config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse query config: %w", err)
	}
	config.Normalize()
	return config, nil
}
