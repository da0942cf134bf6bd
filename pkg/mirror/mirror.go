package mirror

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/discovery"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/framework"
	fetch "github.com/PentesterFlow/OpenMirror/internal/http"
	"github.com/PentesterFlow/OpenMirror/internal/logger"
	"github.com/PentesterFlow/OpenMirror/internal/metrics"
	"github.com/PentesterFlow/OpenMirror/internal/output"
	"github.com/PentesterFlow/OpenMirror/internal/parser"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/progress"
	"github.com/PentesterFlow/OpenMirror/internal/queue"
	"github.com/PentesterFlow/OpenMirror/internal/ratelimit"
	"github.com/PentesterFlow/OpenMirror/internal/rewrite"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// progressInterval is how often the progress display is redrawn.
const progressInterval = 250 * time.Millisecond

// Mirror is the crawl driver. One Mirror performs one run.
type Mirror struct {
	config   *Config
	logger   *logger.Logger
	metrics  *metrics.Collector
	progress *progress.Display

	client   *fetch.Client
	root     *output.Root
	scope    *scope.Checker
	state    *state.Manager
	limiter  *ratelimit.Limiter
	robots   *ratelimit.Robots
	rewriter *rewrite.Rewriter
	frontier *queue.Frontier
	assets   *assetFetcher

	seed     string
	app      *framework.DetectionResult
	running  atomic.Bool
	admitMu  sync.Mutex
	admitted int

	// Pages reached through asset references. fetched holds their
	// responses until a worker takes them; embedded keeps every such URL
	// so that the referring pages are relinked once it is saved.
	pageMu   sync.Mutex
	fetched  map[string]*fetch.Response
	embedded map[string]struct{}
}

// New creates a new mirror with the given options.
func New(opts ...Option) (*Mirror, error) {
	m := &Mirror{config: DefaultConfig()}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := m.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if m.logger == nil {
		level := logger.WarnLevel
		if m.config.Debug {
			level = logger.DebugLevel
		} else if m.config.Verbose {
			level = logger.InfoLevel
		}
		m.logger = logger.New(logger.Config{
			Level:     level,
			Pretty:    true,
			Component: "mirror",
		})
	}

	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	return m, nil
}

// Config returns the configuration in use.
func (m *Mirror) Config() *Config {
	return m.config
}

// initialize sets up all run components. Its errors are fatal.
func (m *Mirror) initialize() error {
	target, err := scope.ValidateStart(m.config.Target)
	if err != nil {
		return err
	}
	if m.seed, err = scope.Canonicalize(target); err != nil {
		return err
	}

	if m.config.OutputDir == "" {
		m.config.OutputDir = scope.SafeFolderName(m.seed)
	}
	if m.root, err = output.EnsureRoot(m.config.OutputDir); err != nil {
		return err
	}

	m.scope, err = scope.NewChecker(m.seed, scope.Rules{
		IncludePatterns: m.config.Scope.IncludePatterns,
		ExcludePatterns: m.config.Scope.ExcludePatterns,
		AllowedDomains:  m.config.Scope.AllowedDomains,
		MaxDepth:        m.config.MaxDepth,
	})
	if err != nil {
		return fmt.Errorf("failed to create scope checker: %w", err)
	}

	provider, err := auth.NewProvider(m.config.Auth)
	if err != nil {
		return fmt.Errorf("invalid auth: %w", err)
	}
	if bearer, ok := provider.(*auth.BearerAuth); ok && bearer.Expired() {
		m.logger.Warnf("Bearer token expired at %s", bearer.Expiry().Format(time.RFC3339))
	}

	var store state.Store
	if m.config.StateFile != "" {
		if store, err = state.OpenStore(m.config.StateFile); err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
	}
	m.state = state.NewManager(store, 100000)

	clientConfig := fetch.DefaultConfig()
	clientConfig.Timeout = m.config.Timeout
	clientConfig.MaxBodySize = m.config.MaxBodySize
	clientConfig.Headers = m.config.Headers
	clientConfig.SkipTLSVerify = m.config.SkipTLSVerify
	clientConfig.Retry.MaxRetries = m.config.MaxRetries
	if m.config.UserAgent != "" {
		clientConfig.UserAgent = m.config.UserAgent
	}
	clientConfig.Auth = provider
	m.client = fetch.NewClient(clientConfig)

	m.limiter = ratelimit.NewLimiter(m.config.Delay)
	m.rewriter = rewrite.New(m.state.Files(), m.scope.IsInScope)
	m.frontier = queue.NewFrontier()
	m.assets = newAssetFetcher(m)
	m.fetched = make(map[string]*fetch.Response)
	m.embedded = make(map[string]struct{})
	return nil
}

// Start mirrors the site. Startup failures (invalid URL, unusable output
// directory, bad scope patterns, unopenable state store) are returned
// without a result. Per-item failures are recorded in the result. When ctx
// is cancelled the partial mirror and report are kept and a cancelled
// error is returned alongside the result.
func (m *Mirror) Start(ctx context.Context) (*Result, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("mirror is already running")
	}
	defer m.running.Store(false)

	startedAt := time.Now()
	if err := m.initialize(); err != nil {
		return nil, err
	}
	defer m.cleanup()

	m.logger.Infof("Mirroring %s into %s", m.seed, m.root.Dir())

	if m.progress != nil {
		m.progress.Start()
		pctx, stop := context.WithCancel(ctx)
		go m.progress.Run(pctx, progressInterval, m.progressStats)
		defer func() {
			stop()
			m.progress.Update(m.progressStats())
			m.progress.Stop()
		}()
	}

	bodies := m.fetchCommonFiles(ctx)
	robots := m.loadRobots(bodies["robots.txt"])

	m.admit(m.seed, 0, "")
	if m.config.SeedSitemap {
		m.seedSitemap(ctx, bodies, robots)
	}

	m.run(ctx)

	if m.config.Relink {
		m.relink()
	}

	interrupted := ctx.Err() != nil
	result := m.finish(startedAt, interrupted)
	if interrupted {
		return result, errors.NewCancelledError(m.seed, "mirror")
	}
	return result, nil
}

// run consumes the frontier with the configured number of workers until it
// drains or ctx is cancelled.
func (m *Mirror) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, m.frontier.Close)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.config.Workers; i++ {
		id := i
		g.Go(func() error {
			m.worker(gctx, id)
			return nil
		})
	}
	g.Wait()
}

func (m *Mirror) worker(ctx context.Context, id int) {
	log := m.logger.WithWorker(id)
	for {
		item, err := m.frontier.Pop()
		if err != nil {
			return
		}
		m.metrics.SetQueueDepth(int64(m.frontier.Len()))

		log.Debugf("Visiting %s (depth %d)", item.URL, item.Depth)
		m.processPage(ctx, item)
		m.frontier.Done()
	}
}

// admit adds a page to the frontier if it is in scope, allowed and not yet
// visited. The visited check and insert is the only admission gate.
func (m *Mirror) admit(rawURL string, depth int, parent string) bool {
	canonical, err := scope.Canonicalize(rawURL)
	if err != nil || !m.scope.AllowsPage(canonical, depth) {
		return false
	}
	if m.robots != nil && !m.robots.Allowed(canonical) {
		m.logger.Debugf("robots.txt disallows %s", canonical)
		return false
	}
	if _, saved := m.state.Lookup(canonical); saved {
		return false
	}

	m.admitMu.Lock()
	defer m.admitMu.Unlock()

	if m.config.MaxPages > 0 && m.admitted >= m.config.MaxPages {
		return false
	}
	if !m.state.TryVisit(canonical) {
		return false
	}
	m.admitted++

	err = m.frontier.Push(&queue.Item{
		URL:       canonical,
		Depth:     depth,
		ParentURL: parent,
		Timestamp: time.Now(),
	})
	return err == nil
}

// processPage fetches a page URL and dispatches it by classification.
// Pages already downloaded by the asset pipeline are not fetched again.
func (m *Mirror) processPage(ctx context.Context, item *queue.Item) {
	defer m.metrics.PageStarted()()

	resp, ok := m.takeFetched(item.URL)
	if !ok {
		if resp, ok = m.fetchPage(ctx, item.URL, false); !ok {
			return
		}
	}
	m.handle(ctx, item, resp)
}

// adoptPage hands HTML fetched through an asset reference of from to the
// page pipeline. It reports false when the URL may not be crawled as a
// page; the caller then saves it as an asset.
func (m *Mirror) adoptPage(canonical string, resp *fetch.Response, from *queue.Item) bool {
	depth, parent := 1, ""
	if from != nil {
		depth, parent = from.Depth+1, from.URL
	}

	m.pageMu.Lock()
	m.fetched[canonical] = resp
	m.embedded[canonical] = struct{}{}
	m.pageMu.Unlock()

	if m.admit(canonical, depth, parent) {
		m.logger.Debugf("Crawling %s referenced as an asset by %s", canonical, parent)
		return true
	}
	visited := m.state.HasVisited(canonical)

	m.pageMu.Lock()
	delete(m.fetched, canonical)
	if !visited {
		delete(m.embedded, canonical)
	}
	m.pageMu.Unlock()
	return visited
}

func (m *Mirror) takeFetched(canonical string) (*fetch.Response, bool) {
	m.pageMu.Lock()
	defer m.pageMu.Unlock()
	resp, ok := m.fetched[canonical]
	delete(m.fetched, canonical)
	return resp, ok
}

func (m *Mirror) isEmbedded(canonical string) bool {
	m.pageMu.Lock()
	defer m.pageMu.Unlock()
	_, ok := m.embedded[canonical]
	return ok
}

// embedsUnsaved reports whether refs reach a page that is not saved yet.
func (m *Mirror) embedsUnsaved(refs []parser.Reference) bool {
	for _, ref := range refs {
		canonical, err := scope.Canonicalize(ref.URL)
		if err != nil || !m.isEmbedded(canonical) {
			continue
		}
		if _, saved := m.state.Lookup(canonical); !saved {
			return true
		}
	}
	return false
}

// fetchPage applies the politeness delay and fetches url. Failures are
// recorded; quiet downgrades them to skips.
func (m *Mirror) fetchPage(ctx context.Context, target string, quiet bool) (*fetch.Response, bool) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, false
	}

	resp, err := m.client.Fetch(ctx, target)
	m.recordResponse(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		if quiet {
			m.state.RecordSkip(target, err)
			m.metrics.RecordSkip()
			m.logger.Debugf("Optional file %s unavailable: %v", target, err)
		} else {
			m.fail(target, err)
		}
		return nil, false
	}
	return resp, true
}

func (m *Mirror) handle(ctx context.Context, item *queue.Item, resp *fetch.Response) {
	switch class := Classify(resp.ContentType, item.URL); class {
	case HTMLDocument:
		m.savePage(ctx, item, resp)
	default:
		m.saveAsset(ctx, item.URL, resp.Body, class, item)
	}
}

// savePage fetches the page's assets, rewrites it, saves it and admits its
// links. Links come from the document before it is rewritten.
func (m *Mirror) savePage(ctx context.Context, item *queue.Item, resp *fetch.Response) {
	path := pathmap.Map(item.URL, false)

	doc, err := parser.ParseHTML(resp.Body, resp.ContentType)
	if err != nil {
		m.skip(item.URL, errors.NewParseSkipError(item.URL, err))
		m.writeFile(item.URL, path, resp.Body, HTMLDocument)
		return
	}

	if item.URL == m.seed {
		m.detectApp(doc)
	}

	links := parser.Links(doc, item.URL)
	refs := parser.Extract(doc, item.URL, m.scope.IsInScope)
	m.assets.fetchAll(ctx, refs, item, false)

	res := m.rewriter.Document(doc, item.URL)
	html, err := doc.Html()
	if err != nil {
		m.skip(item.URL, errors.NewParseSkipError(item.URL, err))
		m.writeFile(item.URL, path, resp.Body, HTMLDocument)
		return
	}

	if m.writeFile(item.URL, path, []byte(html), HTMLDocument) && (len(res.Pending) > 0 || m.embedsUnsaved(refs)) {
		m.state.NotePending(item.URL)
	}

	for _, link := range links {
		m.admit(link, item.Depth+1, item.URL)
	}
}

// detectApp records which JavaScript frameworks the start page uses and
// warns when its content is probably rendered client-side.
func (m *Mirror) detectApp(doc *goquery.Document) {
	m.app = framework.NewDetector().Detect(doc)
	if m.app.IsSPA() {
		m.logger.Warnf("%s looks like a %s application rendered in the browser; the mirror may be incomplete",
			m.seed, m.app.Primary)
	} else if len(m.app.Frameworks) > 0 {
		m.logger.Infof("Detected frameworks: %v", m.app.Frameworks)
	}
}

// writeFile saves data at path and records it in the files table. A URL
// already in the table keeps its entry and is not written again.
func (m *Mirror) writeFile(canonical, path string, data []byte, class Classification) bool {
	if _, saved := m.state.Lookup(canonical); saved {
		return false
	}
	if err := m.root.Write(canonical, path, data); err != nil {
		m.fail(canonical, err)
		return false
	}

	isPage := class == HTMLDocument
	if !m.state.RecordFile(canonical, path, isPage, len(data)) {
		return false
	}
	if isPage {
		m.metrics.RecordPageSaved(int64(len(data)))
	} else {
		m.metrics.RecordAssetSaved(int64(len(data)))
	}
	m.logger.SavedEvent(canonical, path, class.String(), len(data))
	return true
}

// fetchCommonFiles requests the configured root files through the
// normal page pipeline and returns their bodies by name.
func (m *Mirror) fetchCommonFiles(ctx context.Context) map[string][]byte {
	bodies := make(map[string][]byte)
	base := m.siteRoot()

	for _, name := range m.config.CommonFiles {
		if ctx.Err() != nil {
			break
		}
		name = strings.TrimLeft(name, "/")
		canonical, err := scope.Canonicalize(base + "/" + name)
		if err != nil || !m.state.TryVisit(canonical) {
			continue
		}

		resp, ok := m.fetchPage(ctx, canonical, true)
		if !ok {
			continue
		}
		bodies[name] = resp.Body
		m.handle(ctx, &queue.Item{URL: canonical, Timestamp: time.Now()}, resp)
	}
	return bodies
}

// loadRobots parses a fetched robots.txt. Its rules are enforced only
// when RespectRobots is set.
func (m *Mirror) loadRobots(body []byte) *ratelimit.Robots {
	if body == nil {
		return nil
	}
	robots, err := ratelimit.ParseRobots(body, robotsAgent(m.config.UserAgent))
	if err != nil {
		m.skip(m.siteRoot()+"/robots.txt", errors.NewParseSkipError(m.siteRoot()+"/robots.txt", err))
		return nil
	}
	if m.config.RespectRobots {
		m.robots = robots
		if m.limiter.RaiseTo(robots.CrawlDelay()) {
			m.logger.Infof("Using robots.txt crawl delay of %v", m.limiter.Delay())
		}
	}
	return robots
}

// robotsAgent returns the product token matched against robots.txt
// User-agent lines.
func robotsAgent(userAgent string) string {
	token := strings.TrimSpace(userAgent)
	if i := strings.IndexAny(token, "/ "); i >= 0 {
		token = token[:i]
	}
	if token == "" || strings.EqualFold(token, "Mozilla") {
		return "OpenMirror"
	}
	return token
}

// seedSitemap admits same-host sitemap entries as depth 1 pages.
func (m *Mirror) seedSitemap(ctx context.Context, bodies map[string][]byte, robots *ratelimit.Robots) {
	sitemapURL := m.siteRoot() + "/sitemap.xml"
	known := make(map[string][]byte)

	var sources []string
	if body, ok := bodies["sitemap.xml"]; ok {
		known[sitemapURL] = body
		sources = append(sources, sitemapURL)
	} else if !m.listsCommonFile("sitemap.xml") {
		sources = append(sources, sitemapURL)
	}
	if robots != nil {
		sources = append(sources, robots.Sitemaps()...)
	}

	sp := discovery.NewSitemapParser(m.fetchBody, m.config.MaxPages)
	admitted := 0
	for _, loc := range sp.Collect(ctx, sources, known) {
		if m.scope.IsInScope(loc) && m.admit(loc, 1, sitemapURL) {
			admitted++
		}
	}
	m.logger.Infof("Seeded %d pages from sitemaps", admitted)
}

func (m *Mirror) listsCommonFile(name string) bool {
	for _, f := range m.config.CommonFiles {
		if strings.TrimLeft(f, "/") == name {
			return true
		}
	}
	return false
}

// fetchBody fetches auxiliary documents such as nested sitemaps.
func (m *Mirror) fetchBody(ctx context.Context, target string) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := m.client.Fetch(ctx, target)
	m.recordResponse(resp)
	if err != nil {
		if ctx.Err() == nil {
			m.skip(target, err)
		}
		return nil, err
	}
	return resp.Body, nil
}

// relink rewrites anchors and embedded page references of pages saved
// before their targets, and stylesheets rewritten while their children
// were still downloading.
func (m *Mirror) relink() {
	for _, page := range m.state.TakePending() {
		path, ok := m.state.Lookup(page)
		if !ok {
			continue
		}
		data, err := m.root.Read(path)
		if err != nil {
			m.skip(page, errors.NewWriteError(page, path, err))
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			m.skip(page, errors.NewParseSkipError(page, err))
			continue
		}
		res := m.rewriter.Anchors(doc, page)
		res.Rewritten += m.rewriter.Embedded(doc, page, m.isEmbedded).Rewritten
		if res.Rewritten == 0 {
			continue
		}
		html, err := doc.Html()
		if err != nil {
			m.skip(page, errors.NewParseSkipError(page, err))
			continue
		}
		if err := m.root.Write(page, path, []byte(html)); err != nil {
			m.skip(page, err)
			continue
		}
		m.logger.Debugf("Relinked %s", path)
	}

	for _, css := range m.state.TakePendingStylesheets() {
		path, ok := m.state.Lookup(css)
		if !ok {
			continue
		}
		data, err := m.root.Read(path)
		if err != nil {
			m.skip(css, errors.NewWriteError(css, path, err))
			continue
		}
		out, res := m.rewriter.CSS(string(data), css)
		if res.Rewritten == 0 {
			continue
		}
		if err := m.root.Write(css, path, []byte(out)); err != nil {
			m.skip(css, err)
		}
	}
}

// finish writes the report and the snapshot and builds the result.
func (m *Mirror) finish(startedAt time.Time, interrupted bool) *Result {
	report := output.NewReport(m.seed, m.state.PageCount(), m.state.VisitedURLs(), m.state.Files().Snapshot())
	if err := m.root.WriteReport(m.config.ReportName, report); err != nil {
		m.skip(m.seed, err)
	}

	if err := m.state.Save(m.state.Snapshot(m.seed, m.root.Dir(), !interrupted)); err != nil {
		m.logger.Warnf("Failed to save state: %v", err)
	}

	snap := m.metrics.Snapshot()
	m.logger.StatsEvent(snap.Summary())

	return &Result{
		Target:      m.seed,
		OutputDir:   m.root.Dir(),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Report:      report,
		Stats:       m.state.GetStats(),
		Errors:      m.state.Errors(),
		Metrics:     snap,
		App:         m.app,
		Interrupted: interrupted,
	}
}

func (m *Mirror) cleanup() {
	m.client.Close()
	if err := m.state.Close(); err != nil {
		m.logger.Warnf("Failed to close state store: %v", err)
	}
}

// fail records an item that could not be mirrored.
func (m *Mirror) fail(target string, err error) {
	m.state.MarkFailed(target, err)
	m.metrics.RecordError(errors.GetErrorType(err).String())
	m.logger.SkipEvent(err, target, errors.GetOperation(err))
}

// skip records a recovered error that did not lose the item.
func (m *Mirror) skip(target string, err error) {
	m.state.RecordSkip(target, err)
	m.metrics.RecordError(errors.GetErrorType(err).String())
	m.metrics.RecordSkip()
	m.logger.SkipEvent(err, target, errors.GetOperation(err))
}

func (m *Mirror) recordResponse(resp *fetch.Response) {
	if resp == nil {
		return
	}
	m.metrics.RecordResponse(resp.StatusCode, resp.Duration, int64(len(resp.Body)), resp.Attempts)
	m.logger.FetchEvent(resp.URL, resp.StatusCode, resp.Duration)
}

// siteRoot returns scheme://host of the start URL.
func (m *Mirror) siteRoot() string {
	u, err := url.Parse(m.seed)
	if err != nil {
		return strings.TrimSuffix(m.seed, "/")
	}
	return u.Scheme + "://" + u.Host
}

func (m *Mirror) progressStats() progress.Stats {
	stats := m.state.GetStats()
	return progress.Stats{
		Visited:  m.state.VisitedCount(),
		Pages:    stats.PagesSaved,
		Assets:   stats.AssetsSaved,
		Queue:    m.frontier.Len(),
		Failures: stats.Failures,
		Bytes:    stats.BytesWritten,
	}
}
