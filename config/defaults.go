package config

import "time"

// Default runtime limits and guardrails for the sheetrelay server. They can be
// overridden by the YAML config file, .env and environment variables.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenWorkbooks      = 4

	// Row paging for read_data_from_excel
	DefaultPageRows    = 100
	DefaultMaxPageRows = 1000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 60 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultFetchTimeout          = 30 * time.Second
	DefaultUploadTimeout         = 30 * time.Second
)

// DefaultFilesPath is the base directory used by the network transports.
const DefaultFilesPath = "./excel_files"

// DefaultServeAddr is the listen address for the sse and http transports.
const DefaultServeAddr = ":8017"

// DefaultUploadPort is the standard SSH port.
const DefaultUploadPort = 22

const (
	// Relay listener and rate limit (requests per second, burst)
	DefaultRelayAddr  = ":5000"
	DefaultRelayRate  = 5.0
	DefaultRelayBurst = 10
)
