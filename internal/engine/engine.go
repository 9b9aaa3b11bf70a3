// Package engine reconciles tracked sites against their live content.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pagewatch/internal/extract"
	"github.com/JakeFAU/pagewatch/internal/metrics"
	"github.com/JakeFAU/pagewatch/internal/watch"
)

// Config controls sweep behavior.
type Config struct {
	// Concurrency bounds the number of sites reconciled in parallel.
	Concurrency int
	// FetchTimeout bounds each individual page fetch.
	FetchTimeout time.Duration
	// Topic is the Pub/Sub topic change events are published to.
	Topic string
	// SnapshotPrefix is prepended to archived snapshot paths.
	SnapshotPrefix string
}

// Engine visits every tracked site, detects changes, and drives
// notifications and store updates.
type Engine struct {
	cfg      Config
	store    watch.TrackingStore
	fetcher  watch.Fetcher
	headless watch.Fetcher
	detector watch.HeadlessDetector
	hasher   watch.Hasher
	notifier watch.Notifier
	pub      watch.Publisher
	archive  watch.BlobStore
	limiter  RateLimiter
	clock    watch.Clock
	ids      watch.IDGenerator
	logger   *zap.Logger
}

// RateLimiter gates outbound fetches per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithRateLimiter throttles fetches through the given limiter.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(e *Engine) {
		e.limiter = limiter
	}
}

// WithHeadless enables browser promotion for script-rendered pages.
func WithHeadless(fetcher watch.Fetcher, detector watch.HeadlessDetector) Option {
	return func(e *Engine) {
		e.headless = fetcher
		e.detector = detector
	}
}

// WithPublisher enables change-event publishing.
func WithPublisher(pub watch.Publisher) Option {
	return func(e *Engine) {
		e.pub = pub
	}
}

// WithArchive enables snapshot archiving of changed pages.
func WithArchive(archive watch.BlobStore, ids watch.IDGenerator) Option {
	return func(e *Engine) {
		e.archive = archive
		e.ids = ids
	}
}

// New builds an Engine.
func New(
	cfg Config,
	store watch.TrackingStore,
	fetcher watch.Fetcher,
	hasher watch.Hasher,
	notifier watch.Notifier,
	clock watch.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		hasher:   hasher,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type siteJob struct {
	userID string
	site   watch.TrackedSite
}

// Sweep visits every tracked site once. Individual site failures never
// abort the sweep; they are recorded on the returned results.
func (e *Engine) Sweep(ctx context.Context) ([]watch.SiteResult, error) {
	var jobs []siteJob
	err := e.store.ForEachSite(ctx, func(userID string, site watch.TrackedSite) error {
		jobs = append(jobs, siteJob{userID: userID, site: site})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tracked sites: %w", err)
	}

	start := e.clock.Now()
	results := make([]watch.SiteResult, len(jobs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = e.CheckSite(groupCtx, job.userID, job.site)
			return nil
		})
	}
	// Workers never return errors; Wait only surfaces ctx cancellation.
	_ = g.Wait()

	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "canceled"
	}
	metrics.ObserveSweep(outcome, time.Since(start))
	e.logger.Info("sweep complete",
		zap.Int("sites", len(jobs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, ctx.Err()
}

// CheckSite reconciles one tracked site: fetch, fingerprint, classify,
// notify, and persist. The store is only touched when content changed,
// and a document notification failure leaves the stored state untouched
// so the delta is retried on the next sweep.
func (e *Engine) CheckSite(ctx context.Context, userID string, site watch.TrackedSite) watch.SiteResult {
	result := watch.SiteResult{UserID: userID, URL: site.URL}

	resp, err := e.fetch(ctx, site.URL)
	if err != nil {
		result.Kind = watch.ChangeFetchFailed
		result.Err = err
		metrics.ObserveSiteVisit(site.URL, "fetch_failed")
		e.logger.Warn("fetch failed",
			zap.String("user_id", userID),
			zap.String("url", site.URL),
			zap.Error(err),
		)
		return result
	}

	fingerprint, err := e.hasher.Hash(resp.Body)
	if err != nil {
		result.Kind = watch.ChangeFetchFailed
		result.Err = fmt.Errorf("fingerprint content: %w", err)
		metrics.ObserveSiteVisit(site.URL, "fetch_failed")
		return result
	}
	if fingerprint == site.Fingerprint {
		result.Kind = watch.ChangeNone
		metrics.ObserveSiteVisit(site.URL, "unchanged")
		return result
	}

	documents := extract.Documents(resp.Body, baseURL(resp, site.URL))
	newDocs := watch.DiffDocuments(documents, site.Documents)

	snapshotURI := e.archiveSnapshot(ctx, userID, site.URL, resp.Body)

	// The change notice goes out on every content change, new documents
	// or not. Its delivery failure is logged and recorded but never
	// blocks the document bundle or the store update.
	if err := e.notifier.NotifyChange(ctx, userID, site.URL); err != nil {
		metrics.ObserveNotification("change", "error")
		result.Err = fmt.Errorf("notify change: %w", err)
		e.logger.Warn("change notification failed",
			zap.String("user_id", userID),
			zap.String("url", site.URL),
			zap.Error(err),
		)
	} else {
		metrics.ObserveNotification("change", "ok")
	}

	if len(newDocs) > 0 {
		result.Kind = watch.ChangeNewDocuments
		result.NewDocuments = newDocs
		metrics.ObserveSiteVisit(site.URL, "new_documents")
		metrics.ObserveDocumentsFound(site.URL, len(newDocs))

		if err := e.notifier.NotifyDocuments(ctx, userID, site.URL, newDocs); err != nil {
			metrics.ObserveNotification("documents", "error")
			result.Err = fmt.Errorf("notify documents: %w", err)
			e.logger.Warn("document notification failed, delta will be retried",
				zap.String("user_id", userID),
				zap.String("url", site.URL),
				zap.Error(err),
			)
			return result
		}
		metrics.ObserveNotification("documents", "ok")
	} else {
		result.Kind = watch.ChangeContent
		metrics.ObserveSiteVisit(site.URL, "changed")
	}

	// A missing key means the user untracked mid-sweep; UpdateSite is a
	// no-op then and the stale observation is discarded.
	if err := e.store.UpdateSite(ctx, userID, site.URL, fingerprint, documents); err != nil {
		result.Err = fmt.Errorf("update site: %w", err)
		return result
	}

	e.publishChange(ctx, watch.ChangeEvent{
		UserID:       userID,
		URL:          site.URL,
		Fingerprint:  fingerprint,
		NewDocuments: len(newDocs),
		ObservedAt:   e.clock.Now(),
		SnapshotURI:  snapshotURI,
	})
	return result
}

// Inspect fetches a URL without consulting or mutating the store. It is
// used when a site is first tracked.
func (e *Engine) Inspect(ctx context.Context, rawURL string) (string, []watch.DocumentRef, error) {
	resp, err := e.fetch(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}
	fingerprint, err := e.hasher.Hash(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("fingerprint content: %w", err)
	}
	return fingerprint, extract.Documents(resp.Body, baseURL(resp, rawURL)), nil
}

func (e *Engine) fetch(ctx context.Context, rawURL string) (watch.FetchResponse, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, rawURL); err != nil {
			return watch.FetchResponse{}, err
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(fetchCtx, watch.FetchRequest{URL: rawURL})
	if err != nil {
		return watch.FetchResponse{}, err
	}
	metrics.ObserveFetch("http", resp.Duration)

	if e.headless == nil || e.detector == nil || !e.detector.ShouldPromote(resp) {
		return resp, nil
	}

	metrics.ObserveHeadlessPromotion()
	rendered, err := e.headless.Fetch(fetchCtx, watch.FetchRequest{URL: rawURL, UseHeadless: true})
	if err != nil {
		// The probe response is still usable; fall back to it.
		e.logger.Warn("headless fetch failed, using probe response",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return resp, nil
	}
	metrics.ObserveFetch("headless", rendered.Duration)
	return rendered, nil
}

func (e *Engine) archiveSnapshot(ctx context.Context, userID, siteURL string, body []byte) string {
	if e.archive == nil {
		return ""
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("generate snapshot id", zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s/%s/%d-%s.html", userID, metrics.SanitizeSite(siteURL), e.clock.Now().Unix(), id)
	if e.cfg.SnapshotPrefix != "" {
		path = e.cfg.SnapshotPrefix + "/" + path
	}
	uri, err := e.archive.PutObject(ctx, path, "text/html", body)
	if err != nil {
		e.logger.Warn("archive snapshot",
			zap.String("url", siteURL),
			zap.Error(err),
		)
		return ""
	}
	return uri
}

func (e *Engine) publishChange(ctx context.Context, event watch.ChangeEvent) {
	if e.pub == nil {
		return
	}
	if _, err := e.pub.Publish(ctx, e.cfg.Topic, event); err != nil {
		e.logger.Warn("publish change event",
			zap.String("url", event.URL),
			zap.Error(err),
		)
	}
}

// baseURL prefers the final fetched URL so relative document links
// resolve correctly after redirects.
func baseURL(resp watch.FetchResponse, fallback string) string {
	if resp.URL != "" {
		if _, err := url.Parse(resp.URL); err == nil {
			return resp.URL
		}
	}
	return fallback
}
