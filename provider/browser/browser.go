// Package browser discovers videos on pages that only render their contents as the user scrolls, such as the
// "Videos" tab of a channel.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/generic"
	"github.com/alanbriolat/channel-archiver/util"
)

const DefaultSelector = "a#video-title-link"

var ErrScrollLimit = errors.New("scroll limit reached before page stopped growing")

// A Page is one browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
	// Hrefs returns the href attribute of every element matching selector, in document order. Elements without an
	// href are skipped.
	Hrefs(ctx context.Context, selector string) ([]string, error)
	Close() error
}

// A Launcher opens a fresh Page.
type Launcher func(ctx context.Context) (Page, error)

type Scraper struct {
	Launch Launcher
	// Time to wait after each scroll for new content to load.
	Pause time.Duration
	// Upper bound on scroll iterations, in case the page never stops growing.
	MaxScrolls int
	Selector   string
	BaseURL    string
	log        *zap.SugaredLogger
}

func New(launch Launcher, pause time.Duration, maxScrolls int) *Scraper {
	return &Scraper{
		Launch:     launch,
		Pause:      pause,
		MaxScrolls: maxScrolls,
		Selector:   DefaultSelector,
		BaseURL:    util.DefaultBaseURL,
		log:        zap.S().Named("browser"),
	}
}

// Discover loads ref, scrolls until the page height stops changing, then collects every video link on the page.
//
// If scrolling fails part way, links are still collected from whatever has loaded, and returned along with the error.
func (s *Scraper) Discover(ctx context.Context, ref string) (urls []string, err error) {
	page, err := s.Launch(ctx)
	if err != nil {
		return []string{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			s.log.Warnw("failed to close browser", "error", closeErr)
		}
	}()

	if err := page.Navigate(ctx, ref); err != nil {
		return []string{}, fmt.Errorf("failed to load %v: %w", ref, err)
	}

	var result error
	if err := s.scrollToEnd(ctx, page); err != nil {
		result = multierror.Append(result, err)
	}
	hrefs, err := page.Hrefs(ctx, s.Selector)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read links: %w", err))
	}
	return s.collect(hrefs), result
}

func (s *Scraper) scrollToEnd(ctx context.Context, page Page) error {
	var prevHeight int64
	for i := 0; ; i++ {
		if s.MaxScrolls > 0 && i >= s.MaxScrolls {
			s.log.Warnw("giving up on scrolling", "scrolls", i, "height", prevHeight)
			return ErrScrollLimit
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := sleep(ctx, s.Pause); err != nil {
			return err
		}
		height, err := page.ScrollHeight(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page height: %w", err)
		}
		s.log.Debugw("scrolled", "iteration", i, "height", height)
		if height == prevHeight {
			return nil
		}
		prevHeight = height
	}
}

// collect keeps video links only, normalized and in first-seen order.
func (s *Scraper) collect(hrefs []string) []string {
	urls := generic.NewSet[string]()
	for _, href := range hrefs {
		if u, err := util.NormalizeVideoURL(s.BaseURL, href); err == nil {
			urls.Add(u)
		} else if !errors.Is(err, util.ErrNotVideoURL) {
			s.log.Debugw("skipping unparseable link", "href", href, "error", err)
		}
	}
	s.log.Debugw("collected video links", "links", len(hrefs), "videos", urls.Count())
	return urls.ToSlice()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
