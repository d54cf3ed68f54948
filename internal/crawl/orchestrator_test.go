package crawl

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrate/internal/cache"
	"bookrate/internal/model"
	"bookrate/internal/platform"
	"bookrate/internal/resolve"
)

// fakeAdapter returns canned outcomes per query and records the queries
// it was asked to crawl.
type fakeAdapter struct {
	name     string
	scale    int
	outcomes map[string]*model.PlatformOutcome
	err      error
	panics   bool

	mu      sync.Mutex
	queries []string
}

func (f *fakeAdapter) Name() string     { return f.name }
func (f *fakeAdapter) RatingScale() int { return f.scale }

func (f *fakeAdapter) Crawl(_ context.Context, _ *platform.Session, query string) (*model.PlatformOutcome, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.panics {
		panic("adapter exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if outcome, ok := f.outcomes[query]; ok {
		return outcome, nil
	}
	return nil, platform.ErrNotFound
}

// setupTestCache points the global cache at a throwaway database so
// cached resolutions cannot leak between tests.
func setupTestCache(t *testing.T) {
	t.Helper()
	require.NoError(t, cache.ResetGlobal())
	viper.Set("cache.dbfile", filepath.Join(t.TempDir(), "cache.db"))
	viper.Set("cache.ttl", "24h")
	t.Cleanup(func() {
		_ = cache.ResetGlobal()
		viper.Set("cache.dbfile", "")
		viper.Set("cache.ttl", "")
	})
}

// stubLookup routes platform names to fake adapters for the duration of
// a test.
func stubLookup(t *testing.T, adapters map[string]*fakeAdapter) {
	t.Helper()
	setupTestCache(t)
	orig := lookupPlatform
	lookupPlatform = func(name string) (platform.Entry, bool) {
		adapter, ok := adapters[name]
		if !ok {
			return platform.Entry{}, false
		}
		return platform.Entry{
			New:     func() platform.Adapter { return adapter },
			Foreign: platform.IsForeign(name),
			Scale:   adapter.scale,
		}, true
	}
	t.Cleanup(func() { lookupPlatform = orig })
}

// fixedResolver returns the same resolution for every query.
type fixedResolver struct {
	resolution *resolve.Resolution
	calls      int
}

func (f *fixedResolver) Resolve(context.Context, *platform.Session, string) *resolve.Resolution {
	f.calls++
	return f.resolution
}

func rating(v float64) *float64 { return &v }

func outcomeFor(name string, scale int, value float64, reviews int) *model.PlatformOutcome {
	return &model.PlatformOutcome{
		Platform:    name,
		Rating:      rating(value),
		RatingScale: scale,
		ReviewCount: reviews,
		CrawledAt:   time.Now(),
	}
}

func TestSearch_DomesticPlatforms(t *testing.T) {
	stubLookup(t, map[string]*fakeAdapter{
		"kyobo": {name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
		}},
		"yes24": {name: "yes24", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("yes24", 10, 9.6, 1842),
		}},
	})
	orchestrator := NewWith(&fixedResolver{})

	aggregate := orchestrator.Search(context.Background(), "채식주의자", []string{"yes24", "kyobo"})

	require.Len(t, aggregate.Outcomes, 2)
	// Requested order, not completion order.
	assert.Equal(t, "yes24", aggregate.Outcomes[0].Platform)
	assert.Equal(t, "kyobo", aggregate.Outcomes[1].Platform)
	assert.Equal(t, 1969, aggregate.TotalReviews())
	assert.InDelta(t, 9.7, *aggregate.MeanRating(), 0.0001)
}

func TestSearch_InvalidPlatformsYieldEmptyAggregate(t *testing.T) {
	resolver := &fixedResolver{}
	orchestrator := NewWith(resolver)

	aggregate := orchestrator.Search(context.Background(), "채식주의자", []string{"myspace", "friendster"})

	assert.Empty(t, aggregate.Outcomes)
	assert.Equal(t, "채식주의자", aggregate.Query)
	assert.Nil(t, aggregate.MeanRating())
	assert.Zero(t, resolver.calls)
}

func TestSearch_PartialFailureIsolation(t *testing.T) {
	stubLookup(t, map[string]*fakeAdapter{
		"kyobo": {name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
		}},
		"yes24":  {name: "yes24", scale: 10, err: platform.NewTransportError("yes24", errors.New("timeout"))},
		"watcha": {name: "watcha", scale: 5, panics: true},
	})
	orchestrator := NewWith(&fixedResolver{})

	aggregate := orchestrator.Search(context.Background(), "채식주의자", []string{"kyobo", "yes24", "watcha"})

	require.Len(t, aggregate.Outcomes, 1)
	assert.Equal(t, "kyobo", aggregate.Outcomes[0].Platform)
}

func TestSearch_ResolverInvokedOncePerSearch(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"The Vegetarian": outcomeFor("goodreads", 5, 4.35, 231842),
	}}
	amazon := &fakeAdapter{name: "amazon", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"The Vegetarian": outcomeFor("amazon", 5, 4.1, 12894),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads, "amazon": amazon})

	resolver := &fixedResolver{resolution: &resolve.Resolution{Title: "The Vegetarian"}}
	aggregate := NewWith(resolver).Search(context.Background(), "채식주의자", []string{"goodreads", "amazon"})

	assert.Equal(t, 1, resolver.calls)
	assert.Len(t, aggregate.Outcomes, 2)
}

func TestSearch_DomesticOnlySkipsResolver(t *testing.T) {
	stubLookup(t, map[string]*fakeAdapter{
		"kyobo": {name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
		}},
	})
	resolver := &fixedResolver{}

	NewWith(resolver).Search(context.Background(), "채식주의자", []string{"kyobo"})

	assert.Zero(t, resolver.calls)
}

func TestSearch_FailedResolutionSkipsForeignPlatforms(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5}
	kyobo := &fakeAdapter{name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
		"무명의 한국 소설": outcomeFor("kyobo", 10, 8.2, 10),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads, "kyobo": kyobo})

	resolver := &fixedResolver{resolution: &resolve.Resolution{}}
	aggregate := NewWith(resolver).Search(context.Background(), "무명의 한국 소설", []string{"kyobo", "goodreads"})

	require.Len(t, aggregate.Outcomes, 1)
	assert.Equal(t, "kyobo", aggregate.Outcomes[0].Platform)
	assert.Empty(t, goodreads.queries, "unresolved foreign platforms must not be crawled")
}

func TestSearch_ISBNMissFallsBackToTitleOnce(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"The Vegetarian": outcomeFor("goodreads", 5, 4.35, 231842),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads})

	resolver := &fixedResolver{resolution: &resolve.Resolution{Title: "The Vegetarian", ISBN: "9781101906118"}}
	aggregate := NewWith(resolver).Search(context.Background(), "채식주의자", []string{"goodreads"})

	require.Len(t, aggregate.Outcomes, 1)
	assert.Equal(t, []string{"9781101906118", "The Vegetarian"}, goodreads.queries)
}

func TestSearch_Idempotence(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"kyobo": {name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
		}},
	}
	stubLookup(t, adapters)
	orchestrator := NewWith(&fixedResolver{})

	first := orchestrator.Search(context.Background(), "채식주의자", []string{"kyobo"})
	second := orchestrator.Search(context.Background(), "채식주의자", []string{"kyobo"})

	assert.Equal(t, first.Outcomes, second.Outcomes)
}

func TestSearchStream_EmitsResultsThenDone(t *testing.T) {
	stubLookup(t, map[string]*fakeAdapter{
		"kyobo": {name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
		}},
		"watcha": {name: "watcha", scale: 5, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor("watcha", 5, 3.9, 32000),
		}},
		"yes24": {name: "yes24", scale: 10, err: platform.NewTransportError("yes24", errors.New("down"))},
	})
	orchestrator := NewWith(&fixedResolver{})

	var outcomes []string
	var done *DoneSummary
	for event := range orchestrator.SearchStream(context.Background(), "채식주의자", []string{"kyobo", "yes24", "watcha"}) {
		switch {
		case event.Outcome != nil:
			assert.Nil(t, done, "no events after the terminal one")
			outcomes = append(outcomes, event.Outcome.Platform)
		case event.Done != nil:
			done = event.Done
		}
	}

	assert.ElementsMatch(t, []string{"kyobo", "watcha"}, outcomes)
	require.NotNil(t, done)
	assert.Equal(t, 2, done.PlatformCount)
	assert.Equal(t, 32127, done.TotalReviews)
	require.NotNil(t, done.MeanRating)
	assert.InDelta(t, 8.8, *done.MeanRating, 0.0001)
}

func TestSearchStream_EmptySelectionStillSendsDone(t *testing.T) {
	orchestrator := NewWith(&fixedResolver{})

	events := []Event{}
	for event := range orchestrator.SearchStream(context.Background(), "채식주의자", []string{"myspace"}) {
		events = append(events, event)
	}

	require.Len(t, events, 1)
	require.NotNil(t, events[0].Done)
	assert.Zero(t, events[0].Done.PlatformCount)
}

func TestSearch_ManyPlatformsConcurrently(t *testing.T) {
	adapters := make(map[string]*fakeAdapter)
	names := []string{"kyobo", "yes24", "aladin", "sarak", "watcha"}
	for i, name := range names {
		adapters[name] = &fakeAdapter{name: name, scale: 10, outcomes: map[string]*model.PlatformOutcome{
			"채식주의자": outcomeFor(name, 10, 9.0+float64(i)/10, 100+i),
		}}
	}
	stubLookup(t, adapters)
	orchestrator := NewWith(&fixedResolver{})

	// Every search fans out five workers emitting into the same
	// aggregate; repeat to give the race detector something to chew on.
	for i := 0; i < 25; i++ {
		aggregate := orchestrator.Search(context.Background(), "채식주의자", names)
		require.Len(t, aggregate.Outcomes, len(names))
		for j, name := range names {
			assert.Equal(t, name, aggregate.Outcomes[j].Platform)
		}
	}
}

func TestSearch_OutcomesFollowRequestedOrder(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"The Vegetarian": outcomeFor("goodreads", 5, 4.35, 231842),
	}}
	kyobo := &fakeAdapter{name: "kyobo", scale: 10, outcomes: map[string]*model.PlatformOutcome{
		"채식주의자": outcomeFor("kyobo", 10, 9.8, 127),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads, "kyobo": kyobo})

	resolver := &fixedResolver{resolution: &resolve.Resolution{Title: "The Vegetarian"}}
	aggregate := NewWith(resolver).Search(context.Background(), "채식주의자", []string{"goodreads", "kyobo"})

	require.Len(t, aggregate.Outcomes, 2)
	assert.Equal(t, "goodreads", aggregate.Outcomes[0].Platform)
	assert.Equal(t, "kyobo", aggregate.Outcomes[1].Platform)
}

func TestSearch_ResolutionCachedAcrossSearches(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"The Vegetarian": outcomeFor("goodreads", 5, 4.35, 231842),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads})

	resolver := &fixedResolver{resolution: &resolve.Resolution{Title: "The Vegetarian"}}
	orchestrator := NewWith(resolver)

	first := orchestrator.Search(context.Background(), "채식주의자", []string{"goodreads"})
	second := orchestrator.Search(context.Background(), "채식주의자", []string{"goodreads"})

	assert.Equal(t, 1, resolver.calls, "second search must reuse the cached resolution")
	require.Len(t, first.Outcomes, 1)
	assert.Equal(t, first.Outcomes[0].Platform, second.Outcomes[0].Platform)
}

func TestSearch_FailedResolutionNotCached(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads})

	resolver := &fixedResolver{resolution: &resolve.Resolution{}}
	orchestrator := NewWith(resolver)

	orchestrator.Search(context.Background(), "무명의 한국 소설", []string{"goodreads"})
	orchestrator.Search(context.Background(), "무명의 한국 소설", []string{"goodreads"})

	assert.Equal(t, 2, resolver.calls, "a failed resolution must be retried, not cached")
	assert.Empty(t, goodreads.queries)
}

func TestSearch_NonHangulQuerySkipsResolutionCache(t *testing.T) {
	goodreads := &fakeAdapter{name: "goodreads", scale: 5, outcomes: map[string]*model.PlatformOutcome{
		"1984": outcomeFor("goodreads", 5, 4.2, 4500),
	}}
	stubLookup(t, map[string]*fakeAdapter{"goodreads": goodreads})

	resolver := &fixedResolver{resolution: &resolve.Resolution{Title: "1984"}}
	orchestrator := NewWith(resolver)

	orchestrator.Search(context.Background(), "1984", []string{"goodreads"})
	orchestrator.Search(context.Background(), "1984", []string{"goodreads"})

	assert.Equal(t, 2, resolver.calls)
}
