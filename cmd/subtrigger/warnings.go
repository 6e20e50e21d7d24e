package main

import (
	"log"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/config"
)

// logConfigWarnings logs operational risks of a valid but degraded configuration.
func logConfigWarnings(cfg *config.Config) {
	if cfg.Store == config.StoreMemory {
		log.Println("subtrigger: WARNING [P0]: STORE=memory; subscriptions and triggerings are lost on restart")
	}
	if cfg.Transport == config.TransportChannel {
		log.Println("subtrigger: WARNING [P0]: TRANSPORT=channel; buffered messages are lost on restart")
	}
	if !cfg.EnqueueEnabled {
		log.Println("subtrigger: WARNING [P1]: ENQUEUE_ENABLED=false; executions stay PENDING")
	}
	if !cfg.MetricsEnabled {
		log.Println("subtrigger: WARNING [P1]: METRICS_ENABLED=false; no visibility into triggering")
	}
	if cfg.AssetURL == "" {
		log.Println("subtrigger: WARNING [P1]: ASSET_URL not set; asset sweeps and activity reports resolve no assets")
	}
	if cfg.SpatialURL == "" {
		log.Println("subtrigger: INFO: SPATIAL_URL not set; activity reports are matched on their reported areas only")
	}
	if cfg.Store == config.StorePostgres && !cfg.LeaderElectionEnabled {
		log.Println("subtrigger: INFO: LEADER_ELECTION_ENABLED=false; run a single instance to avoid duplicate scheduling")
	}
}
