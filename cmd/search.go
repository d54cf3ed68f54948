package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"bookrate/internal/crawl"
	"bookrate/internal/model"
	"bookrate/internal/platform"
	"bookrate/internal/tui"
)

// Swappable for tests.
var (
	crawlSearch = func(ctx context.Context, query string, platforms []string) *model.SearchAggregate {
		return crawl.New().Search(ctx, query, platforms)
	}
	crawlStream = func(ctx context.Context, query string, platforms []string) <-chan crawl.Event {
		return crawl.New().SearchStream(ctx, query, platforms)
	}
	showProgress = tui.RunProgress
	isTerminal   = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

	outputWriter io.Writer = os.Stdout
)

// SearchCmd represents the search command
type SearchCmd struct {
	Query     []string `arg:"" help:"Book title or author to search for"`
	Platforms []string `short:"p" help:"Platforms to query (default: all)"`
	JSON      bool     `help:"Write results as JSON instead of a table"`
	Stream    bool     `help:"Print results as each platform completes"`
	NoTUI     bool     `help:"Disable the interactive progress view"`
}

func (s *SearchCmd) Run() error {
	query := joinQuery(s.Query)
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	selected := platform.Filter(s.Platforms)
	if len(selected) == 0 {
		return fmt.Errorf("no valid platforms in %v (available: %v)", s.Platforms, platform.Names())
	}

	ctx := context.Background()

	if s.JSON {
		aggregate := crawlSearch(ctx, query, selected)
		return writeAggregateJSON(aggregate)
	}

	if s.Stream {
		return streamPlain(ctx, query, selected)
	}

	if s.NoTUI || !isTerminal() {
		aggregate := crawlSearch(ctx, query, selected)
		fmt.Fprint(outputWriter, aggregate.Summary())
		return nil
	}

	// Quitting the progress view early must release the crawl workers
	// still blocked on the event channel.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := crawlStream(streamCtx, query, selected)
	outcomes, err := showProgress(query, len(selected), events)
	cancel()
	if err != nil {
		return err
	}

	aggregate := model.NewSearchAggregate(query)
	for _, outcome := range outcomes {
		aggregate.Add(outcome)
	}
	fmt.Fprint(outputWriter, aggregate.Summary())
	return nil
}

// streamPlain prints one line per platform in completion order, then a
// summary line from the terminal done event.
func streamPlain(ctx context.Context, query string, platforms []string) error {
	for event := range crawlStream(ctx, query, platforms) {
		switch {
		case event.Outcome != nil:
			rating := "N/A"
			if event.Outcome.Rating != nil {
				rating = fmt.Sprintf("%.1f/%d", *event.Outcome.Rating, event.Outcome.RatingScale)
			}
			fmt.Fprintf(outputWriter, "%-12s %-8s %d reviews\n",
				event.Outcome.Platform, rating, event.Outcome.ReviewCount)
		case event.Done != nil:
			if event.Done.MeanRating != nil {
				fmt.Fprintf(outputWriter, "mean %.2f/10 across %d platforms, %d reviews\n",
					*event.Done.MeanRating, event.Done.PlatformCount, event.Done.TotalReviews)
			} else {
				fmt.Fprintf(outputWriter, "no ratings found\n")
			}
		}
	}
	return nil
}

func joinQuery(parts []string) string {
	query := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if query != "" {
			query += " "
		}
		query += part
	}
	return query
}

func writeAggregateJSON(aggregate *model.SearchAggregate) error {
	encoder := json.NewEncoder(outputWriter)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(aggregate); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
