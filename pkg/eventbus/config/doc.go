/*
Package config loads event bus settings.

Settings are layered. Defaults come first, then an optional YAML or JSON file,
then EVENTBUS_* environment variables:

	cfg, err := config.Load("eventbus.yaml")
	if err != nil {
	    return err
	}
	logger := cfg.NewLogger(os.Stderr)

# File Format

	log_level: debug
	log_format: json
	metrics_enabled: true
	tracing_enabled: false
	journal_path: /var/lib/app/journal.db
	journal_faults_only: true
	shutdown_timeout: 10s

# Environment

	EVENTBUS_LOG_LEVEL            debug | info | warn | error
	EVENTBUS_LOG_FORMAT           text | json
	EVENTBUS_METRICS_ENABLED      true | false
	EVENTBUS_TRACING_ENABLED      true | false
	EVENTBUS_JOURNAL_PATH         file path, ":memory:", or empty to disable
	EVENTBUS_JOURNAL_FAULTS_ONLY  true | false
	EVENTBUS_SHUTDOWN_TIMEOUT     Go duration, e.g. "5s"
*/
package config
