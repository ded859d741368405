package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"Toonbeat/core/player"
	"Toonbeat/logger"
	"Toonbeat/model"
)

// PrefetchConfig 预取配置
type PrefetchConfig struct {
	// Bytes is the size of the ranged GET issued for each track.
	Bytes int64
	// TTL is how long a completed prefetch suppresses another one.
	TTL     time.Duration
	Timeout time.Duration
}

var DefaultPrefetchConfig = PrefetchConfig{
	Bytes:   256 * 1024,
	TTL:     30 * time.Minute,
	Timeout: 30 * time.Second,
}

// HTTPPrefetcher is a Capability that resolves a track's stream handle and
// fetches the head of the stream so the HTTP cache and the handle cache are
// warm when the track is played.
type HTTPPrefetcher struct {
	resolver player.StreamResolver
	client   *http.Client
	cfg      PrefetchConfig

	mu         sync.Mutex
	preheated  map[string]time.Time // track id -> completion time
	inProgress map[string]bool
	now        func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHTTPPrefetcher(resolver player.StreamResolver, client *http.Client, cfg PrefetchConfig) *HTTPPrefetcher {
	if cfg.Bytes <= 0 {
		cfg.Bytes = DefaultPrefetchConfig.Bytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPrefetchConfig.TTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPrefetchConfig.Timeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPPrefetcher{
		resolver:   resolver,
		client:     client,
		cfg:        cfg,
		preheated:  make(map[string]time.Time),
		inProgress: make(map[string]bool),
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动过期预取记录的定期清理
func (p *HTTPPrefetcher) Start() {
	p.wg.Add(1)
	go p.cleanupLoop()
}

// Stop 停止清理协程
func (p *HTTPPrefetcher) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *HTTPPrefetcher) cleanupLoop() {
	defer p.wg.Done()

	cleanupTicker := time.NewTicker(p.cfg.TTL)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-cleanupTicker.C:
			p.Cleanup()
		}
	}
}

// Preload fetches the first bytes of the track's stream. It returns nil
// without any request when the track is already prefetched or in progress.
func (p *HTTPPrefetcher) Preload(ctx context.Context, track model.Track) error {
	if !p.begin(track.ID) {
		return nil
	}
	ok := false
	defer func() { p.finish(track.ID, ok) }()

	uri, err := p.resolver.ResolveStreamHandle(ctx, track.ID)
	if err != nil {
		return fmt.Errorf("resolve stream for %s: %w", track.ID, err)
	}
	if err := p.fetchHead(ctx, uri); err != nil {
		return fmt.Errorf("prefetch %s: %w", track.ID, err)
	}
	ok = true

	logger.Debug("预取完成", logger.String("trackId", track.ID))
	return nil
}

// IsPreheated reports whether the track was prefetched within the TTL.
func (p *HTTPPrefetcher) IsPreheated(trackID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.preheated[trackID]
	return ok && p.now().Sub(at) < p.cfg.TTL
}

// Cleanup forgets prefetches older than the TTL.
func (p *HTTPPrefetcher) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	removed := 0
	for id, at := range p.preheated {
		if now.Sub(at) >= p.cfg.TTL {
			delete(p.preheated, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("清理过期预取记录", logger.Int("removed", removed), logger.Int("remaining", len(p.preheated)))
	}
}

func (p *HTTPPrefetcher) tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.preheated)
}

func (p *HTTPPrefetcher) begin(trackID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inProgress[trackID] {
		return false
	}
	if at, ok := p.preheated[trackID]; ok && p.now().Sub(at) < p.cfg.TTL {
		return false
	}
	p.inProgress[trackID] = true
	return true
}

func (p *HTTPPrefetcher) finish(trackID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inProgress, trackID)
	if ok {
		p.preheated[trackID] = p.now()
	}
}

func (p *HTTPPrefetcher) fetchHead(ctx context.Context, uri string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.cfg.Bytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("预取请求失败，状态码: %d", resp.StatusCode)
	}

	_, err = io.CopyN(io.Discard, resp.Body, p.cfg.Bytes)
	if err == io.EOF {
		return nil
	}
	return err
}
