// Package config manages application configuration for the planner API.
//
// Configuration is built in three layers, later layers winning:
//
//  1. built-in defaults suitable for local development
//  2. an optional TOML file (CONFIG_FILE or the --config flag)
//  3. environment variables
//
//	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS)
//   - DatabaseConfig: SurrealDB connection settings
//   - BrokerConfig: RabbitMQ connection and queue names
//   - CacheConfig: Redis status cache
//   - LifecycleConfig: recruitment scheduler interval
//   - ConsumerConfig: progress consumer placement and store timeout
//   - LogConfig: log level and format
//
// # Environment Variables
//
//	SERVER_PORT              - HTTP server port (default: 8080)
//	DB_HOST, DB_PORT         - SurrealDB endpoint
//	RABBITMQ_HOST            - broker host (default: localhost)
//	OPTIMIZER_QUEUE          - work queue name (default: optimizer_jobs)
//	PROGRESS_QUEUE           - progress queue name (default: optimizer_progress)
//	CONTROL_QUEUE            - control queue name (default: optimizer_control)
//	REDIS_ADDR               - status cache address (default: localhost:6379)
//	CACHE_TTL                - status cache expiry (default: 1h)
//	LIFECYCLE_INTERVAL       - scheduler tick (default: 1m)
//	CONSUMER_IN_PROCESS      - run the progress consumer inside the server
//	CONSUMER_STORE_TIMEOUT   - per-message store deadline (default: 10s)
//	DB_CONNECT_ATTEMPTS      - connect tries before giving up (default: 5)
//	DB_MIGRATE               - apply embedded migrations at startup (default: true)
package config
