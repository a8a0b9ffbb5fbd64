package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/apexgw/gateway/internal/auth"
	"github.com/apexgw/gateway/internal/config"
	"github.com/apexgw/gateway/internal/gateway"
	"github.com/apexgw/gateway/internal/handlers"
	"github.com/apexgw/gateway/internal/metrics"
	"github.com/apexgw/gateway/pkg/balancer"
	"github.com/apexgw/gateway/pkg/clock"
	"github.com/apexgw/gateway/pkg/kv"
	"github.com/apexgw/gateway/pkg/ratelimit"
	ratelimitredis "github.com/apexgw/gateway/pkg/ratelimit/redis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := kv.Dial(kv.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis at %s: %v", cfg.Redis.Addr(), err)
	}
	defer store.Close()

	clk := clock.Real{}

	plans := make([]ratelimit.Plan, 0, len(cfg.Plans))
	for name, p := range cfg.Plans {
		plans = append(plans, ratelimit.Plan{
			Name:       name,
			Capacity:   p.Capacity,
			RefillRate: p.RefillRate,
		})
	}
	registry := ratelimit.NewRegistry(plans...)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Strategy == "script" {
		limiter = ratelimitredis.NewScriptTokenBucket(store, clk)
		fmt.Println("Using script token bucket (atomic)")
	} else {
		limiter = ratelimitredis.NewTokenBucket(store, clk)
		fmt.Println("Using standard token bucket")
	}

	pipeline := gateway.NewPipeline(
		store,
		clk,
		limiter,
		registry,
		balancer.New(store, cfg.Services),
		metrics.NewRecorder(store),
		gateway.NewBackendClient(cfg.Backend.Timeout),
		cfg.Services,
	)

	issuer := auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.TokenTTL())
	reporter := metrics.NewReporter(store, registry.Names(), cfg.Services)

	simulator := handlers.NewSimulator("http://localhost"+cfg.Server.Port, issuer, 16)
	defer simulator.Close()

	h := handlers.New(store, issuer, pipeline, reporter, registry, simulator)

	r := gin.Default()
	h.Routes(r)

	fmt.Printf("Gateway starting on %s (redis: %s, %d plans, %d services)\n",
		cfg.Server.Port, cfg.Redis.Addr(), len(cfg.Plans), len(cfg.Services))
	r.Run(cfg.Server.Port)
}
