// cmd/spots/main.go

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"slonstudy/internal/adapter/overpass"
	"slonstudy/internal/domain/spot"
	spotService "slonstudy/internal/service/spot"
)

var (
	endpoint  string
	userAgent string
	timeout   time.Duration

	south, west, north, east float64
	search                   string
	limit                    int
)

var rootCmd = &cobra.Command{
	Use:   "spots",
	Short: "Look up study spots around a bounding box",
	Long:  `Query the Overpass service for cafes and libraries and print them as JSON.`,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List the study spots in a bounding box",
	Long:  `Fetch every cafe and library in the box, optionally filtered by a case-insensitive name search.`,
	RunE:  runQuery,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest study spots matching a search",
	Long:  `Fetch the spots in the box and print the first few whose name contains the search text.`,
	RunE:  runSuggest,
}

var qlCmd = &cobra.Command{
	Use:   "ql",
	Short: "Print the Overpass QL query for a bounding box",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(overpass.BuildQuery(boundingBox()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", overpass.DefaultEndpoint, "Overpass interpreter endpoint")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "dev.csse.cbjl.slo_n_study", "User-Agent sent upstream")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 25*time.Second, "Upstream request timeout")

	// Defaults cover central San Luis Obispo
	rootCmd.PersistentFlags().Float64Var(&south, "south", 35.27, "Southern latitude")
	rootCmd.PersistentFlags().Float64Var(&west, "west", -120.68, "Western longitude")
	rootCmd.PersistentFlags().Float64Var(&north, "north", 35.31, "Northern latitude")
	rootCmd.PersistentFlags().Float64Var(&east, "east", -120.64, "Eastern longitude")

	queryCmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name")
	suggestCmd.Flags().StringVarP(&search, "search", "s", "", "Search text")
	suggestCmd.Flags().IntVarP(&limit, "limit", "n", spotService.DefaultSuggestionLimit, "Maximum suggestions")

	rootCmd.AddCommand(queryCmd, suggestCmd, qlCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func boundingBox() spot.BoundingBox {
	return spot.BoundingBox{South: south, West: west, North: north, East: east}
}

func fetch(cmd *cobra.Command) (*spotService.MemoryStore, error) {
	client := overpass.NewClient(overpass.Config{
		Endpoint:  endpoint,
		UserAgent: userAgent,
		Timeout:   timeout,
	})

	spots, err := client.FetchStudySpots(cmd.Context(), boundingBox())
	if err != nil {
		return nil, fmt.Errorf("fetch study spots: %w", err)
	}

	store := spotService.NewMemoryStore()
	store.ReplaceAll(spots)

	return store, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	store, err := fetch(cmd)
	if err != nil {
		return err
	}

	return printJSON(cmd, store.FilterByName(search))
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if spotService.IsBlank(search) {
		return printJSON(cmd, []spot.StudySpot{})
	}

	store, err := fetch(cmd)
	if err != nil {
		return err
	}

	return printJSON(cmd, spotService.NewSuggester(limit).Suggest(search, store))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
