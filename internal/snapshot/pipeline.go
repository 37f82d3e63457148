package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/reader/internal/browserpool"
)

// Options configures Scrape.
type Options struct {
	// NavigationTimeout bounds the initial navigation. Default 30s.
	NavigationTimeout time.Duration
}

func (o *Options) defaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
}

// Scrape drives one navigation to url inside bc and returns a lazy, finite
// sequence of PageResults as a channel: the producer goroutine suspends on
// an unbuffered send until the consumer asks for the next item, giving
// cooperative backpressure. The channel is closed after the final item (or
// after ctx is cancelled); bc is released when the goroutine exits, so the
// caller must not reuse bc afterward.
func Scrape(ctx context.Context, bc *browserpool.BrowserContext, url string, opts Options) (<-chan PageResult, error) {
	opts.defaults()

	if err := bc.InstallReadability(ctx); err != nil {
		bc.Release(ctx)
		return nil, err
	}

	snapCh := make(chan Snapshot, 1)
	var lastID string

	stopEvents := bc.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != "reportSnapshot" {
			return
		}
		var s Snapshot
		if err := json.Unmarshal([]byte(e.Payload), &s); err != nil {
			return
		}
		if id := s.identity(); id == lastID {
			return
		} else {
			lastID = id
		}
		select {
		case <-snapCh:
		default:
		}
		snapCh <- s
	})
	go stopEvents()

	navCtx, cancelNav := context.WithTimeout(ctx, opts.NavigationTimeout)
	navDone := make(chan error, 1)
	go func() {
		defer cancelNav()
		navDone <- navigate(bc.Page.Context(navCtx), url)
	}()

	out := make(chan PageResult)
	go runLoop(ctx, bc, url, snapCh, navDone, out)

	return out, nil
}

func runLoop(ctx context.Context, bc *browserpool.BrowserContext, url string, snapCh <-chan Snapshot, navDone <-chan error, out chan<- PageResult) {
	defer close(out)
	defer bc.Release(context.Background())

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-snapCh:
			shot := takeScreenshot(bc.Page.Context(ctx))
			if !deliver(ctx, out, PageResult{URL: url, Snapshot: s, Screenshot: shot}) {
				return
			}

		case <-navDone:
			shot := takeScreenshot(bc.Page.Context(ctx))
			final := finalParse(ctx, bc)
			deliver(ctx, out, PageResult{URL: url, Snapshot: final, Screenshot: shot, Final: true})
			return
		}
	}
}

// deliver sends r on out, swallowing the case where the consumer has
// already disconnected (ctx cancelled mid-send). Returns false if the
// caller should stop producing.
func deliver(ctx context.Context, out chan<- PageResult, r PageResult) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func navigate(page interface {
	Navigate(string) error
	WaitNavigation(proto.PageLifecycleEventName) func()
}, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			}
		}
	}()
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err = page.Navigate(url); err != nil {
		return err
	}
	wait()
	return nil
}

func takeScreenshot(page interface {
	Screenshot(bool, *proto.PageCaptureScreenshot) ([]byte, error)
}) []byte {
	defer func() { recover() }()
	b, err := page.Screenshot(false, nil)
	if err != nil {
		return nil
	}
	return b
}

// finalParse runs one last in-page parse synchronously, per spec step 4:
// "await P_nav, run one last in-page parse synchronously".
func finalParse(ctx context.Context, bc *browserpool.BrowserContext) Snapshot {
	defer func() { recover() }()
	res, err := bc.Page.Context(ctx).Eval(`() => JSON.stringify(window.__readerExtract ? window.__readerExtract() : {})`)
	if err != nil {
		return Snapshot{}
	}
	var s Snapshot
	_ = json.Unmarshal([]byte(res.Value.Str()), &s)
	return s
}
