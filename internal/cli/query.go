package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kb/internal/adapter/llm"
	"kb/internal/domain"
	"kb/internal/port"
	"kb/internal/usecase"
)

var (
	queryText     string
	queryNResults int
	queryJSON     bool
	queryMulti    bool
	queryExpand   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve excerpts matching a query",
	Long: `Search the vector store for document excerpts relevant to a query.

Examples:
  kb query -q "what are blocks?"
  kb query -q "deployments" -n 5 --json
  kb query -q $'blocks\ndeployments' --multi`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryNResults, "n-results", "n", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryMulti, "multi", false, "treat each input line as a separate query")
	queryCmd.Flags().BoolVar(&queryExpand, "expand", false, "expand the query before searching")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ctx, cancel := queryTimeout(cmd.Context())
	defer cancel()

	store, err := dialStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer store.Close()

	nResults := cfg.Query.NResults
	if queryNResults > 0 {
		nResults = queryNResults
	}

	var tool port.Tool
	if queryMulti {
		tool = usecase.NewMultiQueryTool(store, usecase.MultiQueryToolOptions{
			NResults:   nResults,
			MaxChars:   cfg.Query.MaxCharacters,
			MaxQueries: cfg.Query.MaxQueries,
		})
	} else {
		expander, err := buildExpander()
		if err != nil {
			return err
		}
		tool = usecase.NewQueryTool(store, usecase.QueryToolOptions{
			NResults: nResults,
			MaxChars: cfg.Query.MaxCharacters,
			Expander: expander,
		})
	}

	result, err := tool.Run(ctx, queryText)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return printResultSet(result)
}

// buildExpander returns the configured query expander, or nil when
// expansion is off and the --expand flag is not set.
func buildExpander() (*usecase.Expander, error) {
	cfg := GetConfig()

	if !queryExpand && !cfg.Query.Expansion && !cfg.Query.LLMExpansion {
		return nil, nil
	}

	if cfg.Query.LLMExpansion {
		client, err := llm.NewClient(cfg.Query.LLMAPIKeyEnv, cfg.Query.LLMModel, cfg.Query.LLMBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return usecase.NewExpander(client, cfg.Query.MaxQueries+1), nil
	}

	return usecase.NewExpander(nil, cfg.Query.MaxQueries+1), nil
}

func printResultSet(result domain.ResultSet) error {
	if queryJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(result.Fragments) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(result.Fragments), result.Query)
	for i, f := range result.Fragments {
		title := f.Metadata["title"]
		if title == "" {
			title = f.ID
		}
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, title, f.Score)
		if link := f.Metadata["link"]; link != "" {
			fmt.Printf("%s\n", link)
		}
		text := f.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
