// Package main provides the corpusdb CLI entry point: a thin driver over
// the Go API to run queries against corpus snapshots. Query parsing
// proper is an external concern; query files are a YAML rendition of the
// already-parsed query structure.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/exec"
	"github.com/orneryd/corpusdb/pkg/persist"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "corpusdb",
		Short: "corpusdb - annotation graph search engine",
		Long: `corpusdb is a search engine for linguistic annotation graphs:
tokens, spans, hierarchies and pointing relations, queried with
composable structural operators.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("corpusdb v%s\n", version)
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query against a corpus snapshot",
		RunE:  runQuery,
	}
	queryCmd.Flags().String("corpus", "", "Corpus snapshot directory")
	queryCmd.Flags().String("query", "", "Query file (YAML)")
	queryCmd.Flags().String("config", "", "Query config file (YAML)")
	queryCmd.Flags().Int("limit", 0, "Maximum number of results (0 = all)")
	_ = queryCmd.MarkFlagRequired("corpus")
	_ = queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)

	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the execution plan of a query",
		RunE:  runExplain,
	}
	explainCmd.Flags().String("corpus", "", "Corpus snapshot directory")
	explainCmd.Flags().String("query", "", "Query file (YAML)")
	explainCmd.Flags().String("config", "", "Query config file (YAML)")
	_ = explainCmd.MarkFlagRequired("corpus")
	_ = explainCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(explainCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Recompute and print corpus statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().String("corpus", "", "Corpus snapshot directory")
	_ = statsCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadCorpus(cmd *cobra.Command) (*corpus.DB, error) {
	dir, _ := cmd.Flags().GetString("corpus")
	db, err := persist.Load(dir)
	if err != nil {
		return nil, err
	}
	db.Optimize()
	return db, nil
}

func buildQuery(cmd *cobra.Command, db *corpus.DB) (*exec.Query, error) {
	queryPath, _ := cmd.Flags().GetString("query")
	configPath, _ := cmd.Flags().GetString("config")

	config := exec.DefaultQueryConfig()
	if configPath != "" {
		loaded, err := exec.LoadQueryConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	spec, err := LoadQuerySpec(queryPath)
	if err != nil {
		return nil, err
	}
	return spec.Build(db, config)
}

func runQuery(cmd *cobra.Command, args []string) error {
	db, err := loadCorpus(cmd)
	if err != nil {
		return err
	}
	query, err := buildQuery(cmd, db)
	if err != nil {
		return err
	}
	defer query.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	count := 0
	for tuple, ok := query.Next(); ok; tuple, ok = query.Next() {
		for i, m := range tuple {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(db.RenderNodeName(m))
		}
		fmt.Println()
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	if err := query.Err(); err != nil {
		return err
	}
	fmt.Printf("%d matches\n", count)
	return nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	db, err := loadCorpus(cmd)
	if err != nil {
		return err
	}
	query, err := buildQuery(cmd, db)
	if err != nil {
		return err
	}
	defer query.Close()

	fmt.Print(query.DebugString())
	if err := query.Err(); err != nil {
		return err
	}
	fmt.Printf("estimated cost: %.0f\n", query.Cost())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := loadCorpus(cmd)
	if err != nil {
		return err
	}
	db.CalculateStatistics()

	fmt.Printf("corpus: %s\n", db.Name)
	fmt.Printf("annotations: %d\n", db.NodeAnnos.Len())
	fmt.Printf("strings: %d\n", db.Strings.Len())
	for _, c := range db.AllComponents() {
		storage, ok := db.GetStorage(c)
		if !ok {
			continue
		}
		stat := storage.Statistics()
		fmt.Printf("%s: %d edges, avg fan-out %.2f, max depth %d, cyclic %v\n",
			c, storage.NumberOfEdges(), stat.AvgFanOut, stat.MaxDepth, stat.Cyclic)
	}
	return nil
}
