package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/parser"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/queue"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// assetFetcher downloads page and stylesheet resources. Each canonical URL
// is downloaded at most once per run; the claim for it is held until the
// download and any stylesheet processing finish.
type assetFetcher struct {
	m      *Mirror
	flight singleflight.Group

	mu     sync.Mutex
	claims map[string]chan struct{}
}

func newAssetFetcher(m *Mirror) *assetFetcher {
	return &assetFetcher{m: m, claims: make(map[string]chan struct{})}
}

// fetchAll downloads the in-scope references that are not saved yet, in
// parallel, and returns once each has been saved, has failed or was handed
// to the page pipeline. from is the page the references belong to.
//
// nested is set for references found in stylesheets. Those never wait on a
// download owned by someone else, since two stylesheets importing each
// other would otherwise wait forever; fetchAll then reports deferred.
func (a *assetFetcher) fetchAll(ctx context.Context, refs []parser.Reference, from *queue.Item, nested bool) (deferred bool) {
	var skipped atomic.Bool
	seen := make(map[string]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.m.config.AssetWorkers)

	for _, ref := range refs {
		canonical, err := scope.Canonicalize(ref.URL)
		if err != nil || seen[canonical] || !a.m.scope.IsInScope(canonical) {
			continue
		}
		seen[canonical] = true
		if a.settled(canonical) {
			continue
		}

		g.Go(func() error {
			if nested {
				if !a.tryFetch(gctx, canonical, from) {
					skipped.Store(true)
				}
			} else {
				a.fetch(gctx, canonical, from)
			}
			return nil
		})
	}

	g.Wait()
	return skipped.Load()
}

// settled reports whether canonical was already saved or already failed.
func (a *assetFetcher) settled(canonical string) bool {
	if _, ok := a.m.state.Lookup(canonical); ok {
		return true
	}
	return a.m.state.IsFailed(canonical)
}

// claim returns the completion channel for canonical and whether the
// caller became its owner.
func (a *assetFetcher) claim(canonical string) (chan struct{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ch, ok := a.claims[canonical]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	a.claims[canonical] = ch
	return ch, true
}

// fetch downloads canonical, or waits for the download already under way.
// Concurrent page-level callers share one flight.
func (a *assetFetcher) fetch(ctx context.Context, canonical string, from *queue.Item) {
	_, _, shared := a.flight.Do(canonical, func() (interface{}, error) {
		ch, owner := a.claim(canonical)
		if !owner {
			select {
			case <-ch:
			case <-ctx.Done():
			}
			return nil, nil
		}
		defer close(ch)
		a.download(ctx, canonical, from)
		return nil, nil
	})
	if shared {
		a.m.metrics.RecordSharedFetch()
	}
}

// tryFetch downloads canonical unless another download owns it. It reports
// false when that other download has not finished.
func (a *assetFetcher) tryFetch(ctx context.Context, canonical string, from *queue.Item) bool {
	ch, owner := a.claim(canonical)
	if !owner {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
	defer close(ch)
	a.download(ctx, canonical, from)
	return true
}

func (a *assetFetcher) download(ctx context.Context, canonical string, from *queue.Item) {
	if a.settled(canonical) {
		return
	}
	defer a.m.metrics.AssetStarted()()

	resp, err := a.m.client.Fetch(ctx, canonical)
	a.m.recordResponse(resp)
	if err != nil {
		if ctx.Err() == nil {
			a.m.fail(canonical, err)
		}
		return
	}

	class := Classify(resp.ContentType, canonical)
	if class == HTMLDocument && a.m.adoptPage(canonical, resp, from) {
		return
	}
	a.m.saveAsset(ctx, canonical, resp.Body, class.forAsset(), from)
}

// saveAsset writes an asset at its mapped path. Stylesheets are recorded
// before their children are fetched so that import cycles terminate.
func (m *Mirror) saveAsset(ctx context.Context, canonical string, body []byte, class Classification, from *queue.Item) {
	path := pathmap.Map(canonical, true)
	if !m.writeFile(canonical, path, body, class) {
		return
	}
	if class == Stylesheet {
		m.processStylesheet(ctx, canonical, path, body, from)
	}
}

// processStylesheet fetches the children of a saved stylesheet and writes
// the rewritten text over it.
func (m *Mirror) processStylesheet(ctx context.Context, canonical, path string, body []byte, from *queue.Item) {
	if !utf8.Valid(body) {
		m.skip(canonical, errors.NewParseSkipError(canonical, fmt.Errorf("stylesheet is not valid UTF-8")))
		return
	}

	text := string(body)
	deferred := m.assets.fetchAll(ctx, parser.ExtractCSS(text, canonical), from, true)

	out, res := m.rewriter.CSS(text, canonical)
	if res.Rewritten > 0 {
		if err := m.root.Write(canonical, path, []byte(out)); err != nil {
			m.skip(canonical, err)
		}
	}
	if deferred {
		m.state.NotePendingStylesheet(canonical)
	}
}
