// Package config loads the canvasctl application configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then .env files and finally CANVAS_* environment variables such as
// CANVAS_LOG_LEVEL, CANVAS_HISTORY_DEPTH, CANVAS_POLL_INTERVAL and
// CANVAS_STORE_PATH. The merged result is validated before use.
//
// Example:
//
//	telemetry:
//	  logging:
//	    level: debug
//	canvas:
//	  history_depth: 50
//	poller:
//	  interval: 2s
//	  status_file: status.yaml
//	store:
//	  path: drafts.db
package config
