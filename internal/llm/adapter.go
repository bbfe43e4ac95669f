package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/incident-response-ai/internal/observability/metrics"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
	"golang.org/x/sync/semaphore"
)

const (
	defaultInvokeTimeout  = 25 * time.Second
	defaultMaxConcurrency = 8
)

// AdapterOptions tunes the adapter. Zero values pick defaults.
type AdapterOptions struct {
	Timeout        time.Duration
	MaxConcurrency int64
	MaxTokens      int32
	Temperature    float32
	Metrics        *metrics.LLMMetrics
	Logger         *logging.Logger
}

// cachedClient is shared by concurrent invocations. A retired client (its
// credential changed or the adapter closed) is closed once the last
// invocation using it returns.
type cachedClient struct {
	fingerprint string
	client      Client
	refs        int
	retired     bool
}

// retire marks c replaced and reports whether it can be closed now.
// Callers hold a.mu.
func (c *cachedClient) retire() bool {
	c.retired = true
	return c.refs == 0
}

// Adapter turns a prompt into raw model text for whichever provider config it
// is handed. It never retries and never picks a provider on its own.
type Adapter struct {
	factory     ClientFactory
	timeout     time.Duration
	sem         *semaphore.Weighted
	maxTokens   int32
	temperature float32
	metrics     *metrics.LLMMetrics
	logger      *logging.Logger

	mu      sync.Mutex
	clients map[ProviderID]*cachedClient
}

func NewAdapter(factory ClientFactory, opts AdapterOptions) *Adapter {
	if factory == nil {
		panic("llm: client factory cannot be nil")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultInvokeTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Adapter{
		factory:     factory,
		timeout:     opts.Timeout,
		sem:         semaphore.NewWeighted(opts.MaxConcurrency),
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		clients:     make(map[ProviderID]*cachedClient),
	}
}

// Invoke sends prompt to the provider described by cfg and returns the raw text.
func (a *Adapter) Invoke(ctx context.Context, cfg ProviderConfig, prompt Prompt, expectJSON bool) (string, error) {
	if !cfg.Available() {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, cfg.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, err := a.invoke(ctx, cfg, prompt, expectJSON)
	err = classify(ctx, cfg.ID, err)
	a.metrics.ObserveInvocation(string(cfg.ID), ErrorKind(err), time.Since(start).Seconds())
	if err != nil {
		a.logger.Warn("llm invocation failed", "provider", cfg.ID, "model", cfg.model(), "error", err)
		return "", err
	}
	a.logger.Debug("llm invocation complete", "provider", cfg.ID, "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (a *Adapter) invoke(ctx context.Context, cfg ProviderConfig, prompt Prompt, expectJSON bool) (string, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer a.sem.Release(1)

	lease, err := a.clientFor(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer a.release(lease)

	resp, err := lease.client.Complete(ctx, requestFromPrompt(cfg.model(), prompt, a.maxTokens, a.temperature, expectJSON))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", &ProviderError{Provider: cfg.ID, Message: "empty completion"}
	}
	return resp.Text, nil
}

func (a *Adapter) clientFor(ctx context.Context, cfg ProviderConfig) (*cachedClient, error) {
	fp := fingerprint(cfg)

	a.mu.Lock()
	if cached, ok := a.clients[cfg.ID]; ok && cached.fingerprint == fp {
		cached.refs++
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	client, err := a.factory.NewClient(ctx, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: cfg.ID, Message: "client setup failed", Err: err}
	}

	a.mu.Lock()
	var stale Client
	if prev, ok := a.clients[cfg.ID]; ok {
		if prev.fingerprint == fp {
			// Lost a race with another request building the same client.
			prev.refs++
			a.mu.Unlock()
			closeClient(client)
			return prev, nil
		}
		if prev.retire() {
			stale = prev.client
		}
	}
	lease := &cachedClient{fingerprint: fp, client: client, refs: 1}
	a.clients[cfg.ID] = lease
	a.mu.Unlock()

	if stale != nil {
		closeClient(stale)
	}
	return lease, nil
}

func (a *Adapter) release(c *cachedClient) {
	a.mu.Lock()
	c.refs--
	closeNow := c.retired && c.refs == 0
	a.mu.Unlock()
	if closeNow {
		closeClient(c.client)
	}
}

// Invalidate drops the cached client for id; registered as a registry listener.
// Invocations already using the client finish before it is closed.
func (a *Adapter) Invalidate(id ProviderID) {
	a.mu.Lock()
	prev, ok := a.clients[id]
	delete(a.clients, id)
	closeNow := ok && prev.retire()
	a.mu.Unlock()
	if closeNow {
		closeClient(prev.client)
	}
}

// Close releases every cached client. Clients still in use are closed when
// their last invocation returns.
func (a *Adapter) Close() error {
	a.mu.Lock()
	var idle []Client
	for id, cached := range a.clients {
		if cached.retire() {
			idle = append(idle, cached.client)
		}
		delete(a.clients, id)
	}
	a.mu.Unlock()
	for _, c := range idle {
		closeClient(c)
	}
	return nil
}

func classify(ctx context.Context, id ProviderID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrProviderTimeout, id, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &ProviderError{Provider: id, Message: err.Error(), Err: err}
}

func fingerprint(cfg ProviderConfig) string {
	sum := sha256.Sum256([]byte(cfg.Credential + "\x00" + cfg.model()))
	return hex.EncodeToString(sum[:8])
}

func closeClient(c Client) {
	if closer, ok := c.(io.Closer); ok {
		_ = closer.Close()
	}
}
