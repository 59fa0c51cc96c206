package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/core"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rag"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/search"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

func newIngestCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest collected articles from a JSON file or stdin",
		Long: `Ingest reads a JSON array of articles (as produced by a collector) and
runs each through the pipeline: deduplication, LLM scoring, review
gating, knowledge-graph projection, and indexing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				reader = f
			}

			var inputs []*core.IngestInput
			if err := json.NewDecoder(reader).Decode(&inputs); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			async := core.NewAsyncClient(client, core.WithBatchConcurrency(concurrency))
			result, err := async.IngestBatch(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d ingested, %d duplicates, %d failed (%s)\n",
				result.RunID, result.Ingested, result.Duplicates, result.Failed, result.Elapsed)
			for i, ingestErr := range result.Errors {
				if ingestErr != nil {
					fmt.Printf("  input %d: %v\n", i, ingestErr)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel ingestions")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		topK         int
		enhanced     bool
		mode         string
		platform     string
		minRelevance int
		showContext  bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			opts := &rag.Options{
				TopK: topK,
				Filters: &storage.SearchOptions{
					Platform:     platform,
					MinRelevance: minRelevance,
				},
			}
			switch mode {
			case "hybrid", "":
			case "semantic":
				opts.Mode = search.ModeSemanticOnly
			case "keyword":
				opts.Mode = search.ModeKeywordOnly
			default:
				return fmt.Errorf("unknown mode %q (hybrid, semantic, keyword)", mode)
			}

			var result *rag.Result
			if enhanced {
				result, err = client.RetrieveEnhanced(cmd.Context(), args[0], opts)
			} else {
				result, err = client.Retrieve(cmd.Context(), args[0], opts)
			}
			if err != nil {
				return err
			}

			if showContext {
				fmt.Print(client.BuildContext(result))
				return nil
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result.Articles)
			}

			if len(result.Articles) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, a := range result.Articles {
				fmt.Printf("%d. [%.3f] %s\n   %s (relevance %d, %s)\n",
					i+1, a.Score, a.Title, a.Link, a.Analysis.RelevanceScore, a.Analysis.Platform)
			}
			for _, a := range result.Related {
				fmt.Printf("related: %s\n", a.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of results")
	cmd.Flags().BoolVar(&enhanced, "enhanced", false, "use query expansion, rank fusion, and graph enhancement")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, semantic, keyword")
	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform")
	cmd.Flags().IntVar(&minRelevance, "min-relevance", 0, "filter by minimum relevance score")
	cmd.Flags().BoolVar(&showContext, "context", false, "print the generated RAG context block")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newTrendsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Generate a trend report over recent articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			report, err := client.Trends(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "lookback window in days")
	return cmd
}

func newGapsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Report coverage gaps in the collected corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			report, err := client.Gaps(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "lookback window in days")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus, index, and graph statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
