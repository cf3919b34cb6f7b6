package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/famorg/internal/metrics"
)

// maxJWKSBodySize はJWKSレスポンスの最大サイズ（1MB）。
const maxJWKSBodySize = 1 << 20

// ErrKeyNotFound はキーセットに指定kidの鍵が存在しないことを表す。
var ErrKeyNotFound = errors.New("signing key not found in key set")

// defaultJWKSFetchTimeout はhttp.ClientにTimeoutが無い場合のJWKS取得の上限。
const defaultJWKSFetchTimeout = 5 * time.Second

// KeySetCache はリモートJWKSのプロセス内キャッシュ。
// 初回利用時に遅延取得し、Clearされるまで再利用する。
// 同時に発生した取得要求はsingleflightで1回のHTTPリクエストにまとめる。
// 取得は個々のリクエストのキャンセルから切り離され、各呼び出し元は自分のctxが終わった時点でのみ諦める。
type KeySetCache struct {
	url     string
	client  *http.Client
	metrics metrics.MetricsCollector

	mu         sync.RWMutex
	keys       *jose.JSONWebKeySet
	generation uint64 // Clearごとに増える。古い世代の取得結果は保存しない

	group singleflight.Group
}

// NewKeySetCache はKeySetCacheを生成する。
// clientのTimeoutがJWKS取得のタイムアウトになる。
func NewKeySetCache(url string, client *http.Client, mc metrics.MetricsCollector) *KeySetCache {
	if client == nil {
		client = http.DefaultClient
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &KeySetCache{
		url:     url,
		client:  client,
		metrics: mc,
	}
}

// Key は指定kidの公開鍵を返す。キャッシュが空なら取得する。
// kidが空でキーセットに鍵が1つだけの場合はその鍵を返す。
func (c *KeySetCache) Key(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	set, err := c.keySet(ctx)
	if err != nil {
		return nil, err
	}

	if kid == "" {
		if len(set.Keys) == 1 {
			return &set.Keys[0], nil
		}
		return nil, ErrKeyNotFound
	}

	keys := set.Key(kid)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: kid=%s", ErrKeyNotFound, kid)
	}
	return &keys[0], nil
}

// Clear はキャッシュを破棄する。次回のKey呼び出しで再取得される。
// Clear時点で実行中の取得結果はキャッシュに保存されない。
func (c *KeySetCache) Clear() {
	c.mu.Lock()
	c.keys = nil
	c.generation++
	c.mu.Unlock()
}

// Cached はキャッシュ済みかどうかを返す。
func (c *KeySetCache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys != nil
}

func (c *KeySetCache) keySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	c.mu.RLock()
	keys, gen := c.keys, c.generation
	c.mu.RUnlock()
	if keys != nil {
		return keys, nil
	}

	// 世代をキーに含め、Clear後の取得がClear前の取得に合流しないようにする
	flightKey := c.url + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		fetchCtx, cancel := c.fetchContext(ctx)
		defer cancel()

		set, err := c.fetch(fetchCtx)
		if err != nil {
			c.metrics.RecordJWKSFetch(false)
			return nil, err
		}
		c.metrics.RecordJWKSFetch(true)

		c.mu.Lock()
		if c.generation == gen {
			c.keys = set
		}
		c.mu.Unlock()
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to fetch jwks: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jose.JSONWebKeySet), nil
	}
}

// fetchContext は呼び出し元のキャンセルを引き継がない取得用コンテキストを返す。
// 上限はclientのTimeout、未設定ならdefaultJWKSFetchTimeout。
func (c *KeySetCache) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.client.Timeout > 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, defaultJWKSFetchTimeout)
}

func (c *KeySetCache) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBodySize)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode jwks: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, errors.New("jwks contains no keys")
	}

	slog.Info("jwks fetched",
		slog.String("url", c.url),
		slog.Int("keys", len(set.Keys)),
	)
	return &set, nil
}
