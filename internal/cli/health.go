package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the Chroma server and collection",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ctx, cancel := queryTimeout(cmd.Context())
	defer cancel()

	store, err := dialStore(ctx)
	if err != nil {
		return fmt.Errorf("server unreachable at %s:%d: %w", cfg.Chroma.Host, cfg.Chroma.Port, err)
	}
	defer store.Close()

	if err := store.Heartbeat(ctx); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}

	version, err := store.Version(ctx)
	if err != nil {
		return fmt.Errorf("version check failed: %w", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	fmt.Printf("Server:     %s:%d (version %s)\n", cfg.Chroma.Host, cfg.Chroma.Port, version)
	fmt.Printf("Collection: %s (%d excerpts)\n", store.Collection(), count)

	return nil
}
