package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aldr4GO/celebtwin/pkg/client"
)

const defaultServer = "http://localhost:5000"

var searchCmd = &cobra.Command{
	Use:   "search <image>...",
	Short: "Find the closest celebrities for one or more photos",
	Long: `Send each photo to a running celebtwin server and print the ranked
look-alikes. Several photos are sent as independent requests.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var compareCmd = &cobra.Command{
	Use:   "compare <image1> <image2>",
	Short: "Score how similar two faces are",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, compareCmd} {
		c.Flags().String("server", "", "Server URL (default $CELEBTWIN_SERVER or "+defaultServer+")")
		c.Flags().String("api-key", "", "API key (default $CELEBTWIN_API_KEY)")
		c.Flags().Bool("json", false, "Output as JSON")
		rootCmd.AddCommand(c)
	}
	searchCmd.Flags().Int("concurrency", 2, "Requests in flight at once")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server := mustGetString(cmd, "server")
	if server == "" {
		server = os.Getenv("CELEBTWIN_SERVER")
	}
	if server == "" {
		server = defaultServer
	}
	apiKey := mustGetString(cmd, "api-key")
	if apiKey == "" {
		apiKey = os.Getenv("CELEBTWIN_API_KEY")
	}
	return client.New(server, client.WithAPIKey(apiKey))
}

// searchOutcome pairs a query photo with its result.
type searchOutcome struct {
	Image  string               `json:"image"`
	Result *client.SearchResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)

	bar := newSearchProgressBar(len(args), jsonOutput)
	outcomes := searchConcurrently(cmd, c, args, concurrency, bar)

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), outcomes)
	}

	failed := 0
	for _, o := range outcomes {
		printSearchOutcome(cmd.OutOrStdout(), o)
		if o.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d searches failed", failed, len(outcomes))
	}
	return nil
}

// searchConcurrently sends each photo as its own request and keeps results in argument order.
func searchConcurrently(
	cmd *cobra.Command, c *client.Client, paths []string, concurrency int, bar *progressbar.ProgressBar,
) []searchOutcome {
	outcomes := make([]searchOutcome, len(paths))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Go(func() {
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = searchOne(cmd, c, path)
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	wg.Wait()
	return outcomes
}

func searchOne(cmd *cobra.Command, c *client.Client, path string) searchOutcome {
	out := searchOutcome{Image: path}
	img, err := client.OpenImage(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := c.Search(cmd.Context(), img)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = &res
	return out
}

// newSearchProgressBar creates a progress bar for a batch search, or nil for
// JSON output and single photos.
func newSearchProgressBar(count int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput || count < 2 {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Searching"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func printSearchOutcome(w io.Writer, o searchOutcome) {
	fmt.Fprintln(w, o.Image)
	switch {
	case o.Error != "":
		fmt.Fprintf(w, "  error: %s\n", o.Error)
	case !o.Result.Success:
		fmt.Fprintf(w, "  no match: %s\n", o.Result.Error)
	case len(o.Result.Results) == 0:
		fmt.Fprintln(w, "  no matches")
	default:
		for i, m := range o.Result.Results {
			fmt.Fprintf(w, "  %2d. %-48s %6.2f%%\n", i+1, m.ImagePath, m.SimilarityScore*100)
		}
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	a, err := client.OpenImage(args[0])
	if err != nil {
		return err
	}
	b, err := client.OpenImage(args[1])
	if err != nil {
		return err
	}

	res, err := c.Compare(cmd.Context(), a, b)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(cmd.OutOrStdout(), res)
	}
	if !res.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "No comparison: %s\n", res.Error)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Similarity: %.4f (%.1f%% match)\n", res.SimilarityScore, res.MatchPercentage)
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
