// Package app wires configuration into concrete collaborators. It is the
// composition root shared by the proxy binary and by hosts embedding the
// orchestrator directly.
package app

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"

	"article-inference/internal/config"
	"article-inference/internal/engine"
	"article-inference/internal/llm"
	"article-inference/internal/logger"
	"article-inference/internal/platform"
	"article-inference/internal/provider"
	"article-inference/internal/ratelimit"
	"article-inference/internal/resultcache"
	"article-inference/internal/worker"
)

// onDeviceModel names the bundled artifact set served under MODEL_BASE_URL.
const onDeviceModel = "article-base"

// Deps holds the long-lived collaborators built from configuration.
type Deps struct {
	Cfg     config.Config
	Log     *slog.Logger
	Limiter *ratelimit.Limiter
	LLM     llm.Client
	Cache   resultcache.Cache

	memStore *ratelimit.MemoryStore
}

// Build loads configuration and constructs every collaborator. Optional
// backends degrade rather than fail: a missing Redis falls back to the
// in-process store, a missing API key leaves LLM nil.
func Build() (*Deps, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	d := &Deps{
		Cfg:      cfg,
		Log:      log,
		memStore: ratelimit.NewMemoryStore(ratelimit.DefaultSweepInterval),
	}

	var primary ratelimit.Store = d.memStore
	if cfg.RedisURL != "" {
		store, err := ratelimit.NewRedisStore(cfg.RedisURL, cfg.RedisToken)
		if err != nil {
			log.Warn("redis unreachable; rate limiting is per-process only", "err", err)
		} else {
			primary = store
		}
	}
	d.Limiter = ratelimit.New(primary, d.memStore, cfg.RateLimitCeiling, cfg.RateLimitWindow, log)

	if cfg.OpenAIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("configure llm client: %w", err)
		}
		d.LLM = client
	} else {
		log.Warn("OPENAI_API_KEY not set; cloud summarization disabled")
	}

	cache, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}
	d.Cache = cache

	return d, nil
}

func buildCache(cfg config.Config) (resultcache.Cache, error) {
	switch cfg.CacheProvider {
	case "", "memory":
		return resultcache.NewMemoryCache(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("CACHE_PROVIDER=redis requires REDIS_URL")
		}
		return resultcache.NewRedisCache(cfg.RedisURL, cfg.RedisToken)
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("CACHE_PROVIDER=postgres requires DB_URL")
		}
		return resultcache.NewPostgres(cfg.DBURL)
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.CacheProvider)
	}
}

// Orchestrator assembles the full provider stack in preference order:
// on-device, platform-native, cloud proxy, then direct cloud access.
// proxyEndpoint may be empty when the host runs without the proxy tier.
func (d *Deps) Orchestrator(proxyEndpoint string) (*provider.Orchestrator, *worker.Host) {
	host := worker.New(engine.NewLocalEngine(d.Cfg.ModelBaseURL, d.Log), d.Log)

	providers := []provider.Provider{
		provider.NewOnDevice(host, onDeviceModel),
		provider.NewPlatform(platform.NewClient(d.Cfg.PlatformURL, d.Log), d.Cfg.PlatformModel),
	}
	if proxyEndpoint != "" {
		providers = append(providers, provider.NewCloudProxy(proxyEndpoint))
	}
	providers = append(providers, provider.NewCloudDirect(d.LLM))

	return provider.NewOrchestrator(providers, d.Cache, d.Cfg.CacheTTL, d.Log), host
}

// Close releases every collaborator Build created.
func (d *Deps) Close() {
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			d.Log.Warn("closing result cache", "err", err)
		}
	}
	if d.memStore != nil {
		d.memStore.Close()
	}
}
