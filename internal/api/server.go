package api

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"cvrpplan/internal/auth"
	"cvrpplan/internal/config"
	"cvrpplan/internal/opt"
	"cvrpplan/internal/store"
	"cvrpplan/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Broker   EventBroker
	Auth     *auth.Verifier
	Notifier *webhooks.Notifier
	// Limiter throttles optimize requests; nil means unlimited.
	Limiter *rate.Limiter
	Engine  opt.Engine
	Options opt.Options
	Config  config.Config

	// runs tracks async plans so Close can wait for them.
	runs   sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server from cfg. Without a database URL plans are kept
// in memory; without a Redis URL events stay in process.
func NewServer(cfg config.Config) (*Server, error) {
	opts, err := cfg.Planner.Options()
	if err != nil {
		return nil, err
	}
	var s store.Store
	if strings.TrimSpace(cfg.Service.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Service.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Service.DBMigrate {
			if err := sp.Migrate(context.Background()); err != nil {
				_ = sp.Close()
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.Service.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.Service.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-memory broker: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	var limiter *rate.Limiter
	if cfg.Service.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Service.RateRPS), max(cfg.Service.RateBurst, 1))
	}
	var notifier *webhooks.Notifier
	if cfg.Service.WebhookURL != "" {
		notifier = webhooks.NewNotifier(cfg.Service.WebhookURL, cfg.Service.WebhookSecret, cfg.Service.WebhookMaxAttempts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Store:    s,
		Broker:   broker,
		Auth:     auth.NewVerifier(cfg.Service.AuthMode, cfg.Service.AuthHMACSecret),
		Notifier: notifier,
		Limiter:  limiter,
		Engine:   opt.NewLocalEngine(),
		Options:  opts,
		Config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Close cancels running async plans, waits for them to record their outcome
// and releases the store and broker.
func (s *Server) Close() error {
	s.cancel()
	s.runs.Wait()
	if s.Notifier != nil {
		s.Notifier.Stop()
	}
	if rb, ok := s.Broker.(*RedisBroker); ok {
		_ = rb.Close()
	}
	if c, ok := s.Store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
