// Command researchrag is the CLI for the research intelligence pipeline:
// it ingests collected articles, runs hybrid retrieval over the corpus,
// and produces trend and gap reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/core"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "researchrag",
		Short:         "Hybrid search and RAG pipeline for LLM memory research",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newIngestCmd(),
		newQueryCmd(),
		newTrendsCmd(),
		newGapsCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newClient builds the pipeline client from flags and environment.
func newClient() (*core.Client, error) {
	var cfg *core.Config
	var err error
	if configPath != "" {
		cfg, err = core.LoadConfigFile(configPath)
	} else {
		cfg, err = core.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	return core.NewClient(cfg)
}
