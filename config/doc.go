// Package config loads service configuration with Viper.
//
// LoadConfig reads cmd/<service>/config.yml (or an explicit file), then a
// .env file through godotenv, then the process environment. Environment keys
// are the upper-cased dotted path prefixed by the service name:
//
//	SPEECHGATE_SCHEDULER_WORKERS=4  ->  scheduler.workers
//	SPEECHGATE_SERVER_PORT=9000     ->  server.port
package config
