package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	scrollScript       = `window.scrollTo(0, document.documentElement.scrollHeight); true`
	scrollHeightScript = `document.documentElement.scrollHeight`

	lifecycleInit        = "init"
	lifecycleNetworkIdle = "networkIdle"
)

// ChromeLauncher starts a headless Chrome for each Page. navigateTimeout bounds each Navigate call.
func ChromeLauncher(navigateTimeout time.Duration) Launcher {
	return func(ctx context.Context) (Page, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		// Start the browser now so launch failures are reported here rather than on first use
		if err := chromedp.Run(tabCtx); err != nil {
			cancelTab()
			cancelAlloc()
			return nil, err
		}
		return &chromePage{
			ctx:             tabCtx,
			navigateTimeout: navigateTimeout,
			cancel: func() {
				cancelTab()
				cancelAlloc()
			},
		}, nil
	}
}

type chromePage struct {
	ctx             context.Context
	navigateTimeout time.Duration
	cancel          func()
}

// run executes actions in the tab, also giving up if the caller's ctx is done.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits until the page's network has gone idle, so lazily loaded content is present.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()
	watch := newLifecycleWatch(lifecycleNetworkIdle)
	chromedp.ListenTarget(listenCtx, watch.observe)
	return p.run(ctx, p.navigateTimeout,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
		chromedp.ActionFunc(watch.wait),
	)
}

// lifecycleWatch waits for a lifecycle event of the first frame that starts loading after it is created, ignoring
// events left over from the previous document.
type lifecycleWatch struct {
	name     string
	frameID  cdp.FrameID
	loaderID cdp.LoaderID
	done     chan struct{}
	once     sync.Once
}

func newLifecycleWatch(name string) *lifecycleWatch {
	return &lifecycleWatch{name: name, done: make(chan struct{})}
}

func (w *lifecycleWatch) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	switch {
	case e.Name == lifecycleInit && w.frameID == "":
		w.frameID, w.loaderID = e.FrameID, e.LoaderID
	case e.Name == w.name && w.frameID != "" && e.FrameID == w.frameID && e.LoaderID == w.loaderID:
		w.once.Do(func() { close(w.done) })
	}
}

func (w *lifecycleWatch) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %v: %w", w.name, ctx.Err())
	}
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	var ok bool
	return p.run(ctx, 0, chromedp.Evaluate(scrollScript, &ok))
}

func (p *chromePage) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	err := p.run(ctx, 0, chromedp.Evaluate(scrollHeightScript, &height))
	return height, err
}

func (p *chromePage) Hrefs(ctx context.Context, selector string) ([]string, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %v: %w", selector, err)
	}
	hrefs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if href, ok := node.Attribute("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
