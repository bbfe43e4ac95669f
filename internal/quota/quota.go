// Package quota enforces per-client analysis limits backed by Redis.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

var tracer = otel.Tracer("incident.internal.quota")

// Config controls the analysis quota.
type Config struct {
	// Max analyses per client per window. Zero or less disables the check.
	MaxPerWindow int
	Window       time.Duration
}

// DefaultConfig returns default quota limits.
func DefaultConfig() Config {
	return Config{MaxPerWindow: 60, Window: time.Hour}
}

// Result contains the result of a quota check.
type Result struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// Limiter counts model-backed requests per client.
type Limiter struct {
	redis  *redis.Client
	logger *logging.Logger
	config Config
	now    func() time.Time
}

// NewLimiter creates a new analysis limiter.
func NewLimiter(redisClient *redis.Client, config Config, logger *logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.Default()
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &Limiter{
		redis:  redisClient,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

func key(clientID string) string {
	return fmt.Sprintf("quota:analysis:%s", clientID)
}

// Check counts one request for clientID. It fails open: when Redis cannot
// be reached the request is allowed.
func (l *Limiter) Check(ctx context.Context, clientID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "quota.check")
	defer span.End()

	if l.redis == nil || l.config.MaxPerWindow <= 0 {
		return &Result{Allowed: true}, nil
	}

	count, expiry, err := l.incrementAndGet(ctx, key(clientID), l.config.Window)
	if err != nil {
		l.logger.Error("quota check failed", "error", err, "client_id", clientID)
		span.RecordError(err)
		return &Result{Allowed: true, Message: "quota check unavailable"}, nil
	}

	result := &Result{
		Allowed:      count <= l.config.MaxPerWindow,
		CurrentCount: count,
		MaxAllowed:   l.config.MaxPerWindow,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d analyses in %s", l.config.MaxPerWindow, l.config.Window)
		l.logger.Warn("analysis quota exceeded",
			"client_id", clientID,
			"count", count,
			"max", l.config.MaxPerWindow,
		)
		span.SetAttributes(attribute.Bool("quota.exceeded", true))
	}
	return result, nil
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (l *Limiter) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), l.now().Add(ttl), nil
}

// Reset clears the counter for clientID (admin use).
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	if l.redis == nil {
		return nil
	}
	return l.redis.Del(ctx, key(clientID)).Err()
}

// Stats returns the current count without incrementing it.
func (l *Limiter) Stats(ctx context.Context, clientID string) (*Result, error) {
	if l.redis == nil {
		return &Result{Allowed: true}, nil
	}
	count, err := l.redis.Get(ctx, key(clientID)).Int()
	if errors.Is(err, redis.Nil) {
		return &Result{Allowed: true, MaxAllowed: l.config.MaxPerWindow}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quota: stats: %w", err)
	}
	ttl, _ := l.redis.TTL(ctx, key(clientID)).Result()
	return &Result{
		Allowed:      count < l.config.MaxPerWindow,
		CurrentCount: count,
		MaxAllowed:   l.config.MaxPerWindow,
		WindowExpiry: l.now().Add(ttl),
	}, nil
}

// Middleware rejects requests once the caller's quota is spent. Callers are
// identified by the X-Client-ID header, falling back to the remote IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := l.Check(r.Context(), ClientID(r))
		if err == nil && !res.Allowed {
			retry := int(time.Until(res.WindowExpiry).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": res.Message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientID identifies the caller for quota purposes.
func ClientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Client-ID")); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
