package scraper

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome before returning their HTML.
// Used for catalogs that build their result lists client-side.
type BrowserFetcher struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowserFetcher starts a headless browser allocator. chromeBin may be empty
// to auto-detect the binary. Call Close when done.
func NewBrowserFetcher(chromeBin, userAgent string) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("lang", "fr-FR"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	// The tab descends from the browser, not from ctx: carry over its deadline
	// and cancellation by hand.
	runCtx := tabCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var status atomic.Int64
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			status.CompareAndSwap(0, resp.Response.Status)
		}
	})

	var html, finalURL string
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &FetchError{Kind: KindTimeout, URL: url, Err: err}
		}
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: err}
	}

	if code := int(status.Load()); code != 0 && (code < 200 || code > 299) {
		return nil, &FetchError{Kind: KindHTTPStatus, Code: code, URL: url}
	}

	return &Page{URL: finalURL, Body: []byte(html)}, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() {
	f.cancelBrowser()
	f.cancelAlloc()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
