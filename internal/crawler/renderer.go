package crawler

import (
	"context"
	"io"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer renders pages in a shared headless Chrome instance so that
// script-generated markup is captured.
type ChromeRenderer struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	wait          time.Duration
	timeout       time.Duration
}

func NewChromeRenderer(userAgent string, wait, timeout time.Duration) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ChromeRenderer{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		wait:          wait,
		timeout:       timeout,
	}
}

// Render navigates to uri in a new tab and writes the document's outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, uri string, w io.Writer) error {
	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// tab contexts derive from the browser, so follow the caller by hand
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(uri),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, "<!DOCTYPE html>\n"+html)
	return err
}

func (r *ChromeRenderer) Close() {
	r.browserCancel()
	r.allocCancel()
}
