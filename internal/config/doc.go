// Package config provides centralized configuration management for the
// ingestion service.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// A .env file in the working directory is loaded into the environment
// before anything else.
//
// # Environment Variables
//
// All environment variables follow the pattern WDP_<SECTION>_<FIELD>:
//
//	WDP_STORE_DRIVER=sqlite
//	WDP_STORE_URI=mongodb://lab-db:27017
//	WDP_STORE_WRITE_MODE=upsert
//	WDP_INGEST_WATCH_DIR=/srv/rig/metrics
//	WDP_INGEST_CUTOFF=2023-01-08
//	WDP_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For tests, Default returns a configuration that needs no environment.
package config
