package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrate/internal/crawl"
	"bookrate/internal/model"
)

func floatPtr(f float64) *float64 { return &f }

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := outputWriter
	t.Cleanup(func() { outputWriter = orig })
	buf := &bytes.Buffer{}
	outputWriter = buf
	return buf
}

func stubSearch(t *testing.T, aggregate *model.SearchAggregate) *[][]string {
	t.Helper()
	orig := crawlSearch
	t.Cleanup(func() { crawlSearch = orig })

	var calls [][]string
	crawlSearch = func(_ context.Context, query string, platforms []string) *model.SearchAggregate {
		calls = append(calls, append([]string{query}, platforms...))
		return aggregate
	}
	return &calls
}

func TestJoinQuery(t *testing.T) {
	assert.Equal(t, "채식주의자 한강", joinQuery([]string{"채식주의자", "한강"}))
	assert.Equal(t, "1984", joinQuery([]string{"1984"}))
	assert.Equal(t, "a b", joinQuery([]string{"a", "", "b"}))
	assert.Equal(t, "", joinQuery(nil))
}

func TestSearchCmdRejectsEmptyQuery(t *testing.T) {
	cmd := &SearchCmd{Query: []string{""}}
	err := cmd.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestSearchCmdRejectsUnknownPlatforms(t *testing.T) {
	cmd := &SearchCmd{Query: []string{"1984"}, Platforms: []string{"nosuchsite"}}
	err := cmd.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid platforms")
}

func TestSearchCmdJSONOutput(t *testing.T) {
	buf := captureOutput(t)

	aggregate := model.NewSearchAggregate("채식주의자")
	aggregate.Add(model.PlatformOutcome{
		Platform: "kyobo", Rating: floatPtr(9.8), RatingScale: 10, ReviewCount: 127,
	})
	calls := stubSearch(t, aggregate)

	cmd := &SearchCmd{Query: []string{"채식주의자"}, Platforms: []string{"kyobo"}, JSON: true}
	require.NoError(t, cmd.Run())

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"채식주의자", "kyobo"}, (*calls)[0])

	var decoded model.SearchAggregate
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "채식주의자", decoded.Query)
	require.Len(t, decoded.Outcomes, 1)
	assert.Equal(t, "kyobo", decoded.Outcomes[0].Platform)
}

func TestSearchCmdPlainOutput(t *testing.T) {
	buf := captureOutput(t)

	aggregate := model.NewSearchAggregate("1984")
	aggregate.Add(model.PlatformOutcome{
		Platform: "goodreads", Rating: floatPtr(4.2), RatingScale: 5, ReviewCount: 4500,
	})
	stubSearch(t, aggregate)

	cmd := &SearchCmd{Query: []string{"1984"}, NoTUI: true}
	require.NoError(t, cmd.Run())

	assert.Contains(t, buf.String(), "goodreads")
	assert.Contains(t, buf.String(), "4.2/5")
}

func TestSearchCmdStreamsThroughTUI(t *testing.T) {
	buf := captureOutput(t)

	origTerm := isTerminal
	t.Cleanup(func() { isTerminal = origTerm })
	isTerminal = func() bool { return true }

	origStream := crawlStream
	t.Cleanup(func() { crawlStream = origStream })
	crawlStream = func(_ context.Context, query string, platforms []string) <-chan crawl.Event {
		events := make(chan crawl.Event, 1)
		events <- crawl.Event{Done: &crawl.DoneSummary{Query: query}}
		close(events)
		return events
	}

	origProgress := showProgress
	t.Cleanup(func() { showProgress = origProgress })
	showProgress = func(query string, expected int, events <-chan crawl.Event) ([]model.PlatformOutcome, error) {
		for range events {
		}
		return []model.PlatformOutcome{
			{Platform: "watcha", Rating: floatPtr(3.9), RatingScale: 5, ReviewCount: 32000},
		}, nil
	}

	cmd := &SearchCmd{Query: []string{"채식주의자"}, Platforms: []string{"watcha"}}
	require.NoError(t, cmd.Run())

	assert.Contains(t, buf.String(), "watcha")
	assert.Contains(t, buf.String(), "3.9/5")
}

func TestSearchCmdStreamOutput(t *testing.T) {
	buf := captureOutput(t)

	orig := crawlStream
	t.Cleanup(func() { crawlStream = orig })
	crawlStream = func(_ context.Context, _ string, _ []string) <-chan crawl.Event {
		events := make(chan crawl.Event, 3)
		events <- crawl.Event{Outcome: &model.PlatformOutcome{
			Platform: "kyobo", Rating: floatPtr(9.8), RatingScale: 10, ReviewCount: 127,
		}}
		events <- crawl.Event{Outcome: &model.PlatformOutcome{
			Platform: "yes24", RatingScale: 10, ReviewCount: 4,
		}}
		events <- crawl.Event{Done: &crawl.DoneSummary{
			MeanRating: floatPtr(9.8), TotalReviews: 131, PlatformCount: 2,
		}}
		close(events)
		return events
	}

	cmd := &SearchCmd{Query: []string{"채식주의자"}, Stream: true}
	require.NoError(t, cmd.Run())

	out := buf.String()
	assert.Contains(t, out, "kyobo")
	assert.Contains(t, out, "9.8/10")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "mean 9.80/10 across 2 platforms, 131 reviews")
}

func TestSearchCmdCancelsStreamWhenProgressViewExits(t *testing.T) {
	captureOutput(t)

	origTerm := isTerminal
	t.Cleanup(func() { isTerminal = origTerm })
	isTerminal = func() bool { return true }

	var streamCtx context.Context
	origStream := crawlStream
	t.Cleanup(func() { crawlStream = origStream })
	crawlStream = func(ctx context.Context, _ string, _ []string) <-chan crawl.Event {
		streamCtx = ctx
		events := make(chan crawl.Event)
		return events
	}

	origProgress := showProgress
	t.Cleanup(func() { showProgress = origProgress })
	showProgress = func(string, int, <-chan crawl.Event) ([]model.PlatformOutcome, error) {
		// User quit before any platform finished.
		return nil, nil
	}

	cmd := &SearchCmd{Query: []string{"채식주의자"}, Platforms: []string{"kyobo"}}
	require.NoError(t, cmd.Run())

	require.NotNil(t, streamCtx)
	assert.ErrorIs(t, streamCtx.Err(), context.Canceled)
}
