// Package automation renders pages through a real Chrome instance for
// sites whose anti-bot fronting rejects plain HTTP clients.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"bookrate/internal/fetch"
)

const defaultRenderTimeout = 45 * time.Second

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
)

type RenderOptions struct {
	Headless bool
	Timeout  time.Duration
}

// RenderResult holds the rendered document and the URL the browser
// ended up on after redirects.
type RenderResult struct {
	HTML     string
	FinalURL string
}

// RenderPage navigates a fresh browser process to url, waits for the
// document to become ready and returns the rendered HTML. Each call
// launches its own Chrome so a wedged page cannot poison later crawls.
func RenderPage(parentCtx context.Context, url string, opts RenderOptions) (*RenderResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultRenderTimeout
	}

	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	allocCtx, cancelAllocator := chromedpExecAllocator(ctx, buildExecAllocatorOptions(opts)...)
	defer cancelAllocator()

	browserCtx, cancelBrowser := chromedpContext(allocCtx)
	defer cancelBrowser()

	var result RenderResult
	err := chromedpRunner(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Headless Chrome reports a HeadlessChrome UA token unless overridden here.
			return emulation.SetUserAgentOverride(fetch.UserAgent).
				WithAcceptLanguage("ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7").
				Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&result.FinalURL),
		chromedp.OuterHTML("html", &result.HTML),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	slog.Debug("Rendered page in browser", "url", url, "final_url", result.FinalURL, "bytes", len(result.HTML))
	return &result, nil
}

func buildExecAllocatorOptions(opts RenderOptions) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(fetch.UserAgent),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
}
