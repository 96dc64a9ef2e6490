package config

import "errors"

// Configuration validation errors. Validation returns these sentinels,
// wrapped with the offending value where one exists, so callers can use
// errors.Is.
var (
	// ErrNoJobs is returned when a crawl has neither a URL argument nor a
	// job list.
	ErrNoJobs = errors.New("no crawl job specified: provide a URL or use --jobs")

	// ErrInvalidRootURL is returned for seeds that are not absolute http(s) URLs.
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http or https URL")

	// ErrInvalidDepth is returned for negative crawl depths.
	ErrInvalidDepth = errors.New("invalid depth: must be zero or positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidFolderName is returned for folder names that are empty or
	// contain path separators.
	ErrInvalidFolderName = errors.New("invalid folder name")

	// ErrInvalidRetryCeiling is returned when fewer than one attempt is allowed.
	ErrInvalidRetryCeiling = errors.New("invalid retry ceiling: must be at least 1")

	// ErrInvalidDatePolicy is returned for unknown duplicate date policies.
	ErrInvalidDatePolicy = errors.New("invalid date policy: use delete-newer or delete-older")

	// ErrInvalidMinFileSize is returned for negative size thresholds.
	ErrInvalidMinFileSize = errors.New("invalid minimum file size: must be non-negative")

	// ErrInvalidPurgeThreshold is returned when a purge has no positive threshold.
	ErrInvalidPurgeThreshold = errors.New("invalid purge threshold: must be positive")

	// ErrNoRemote is returned when a remote operation has no usable remote
	// store configuration.
	ErrNoRemote = errors.New("no remote store configured")

	// ErrInvalidHashAlgorithm is returned for unknown digest algorithms.
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRate is returned for a negative per-host request rate.
	ErrInvalidRate = errors.New("invalid request rate: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidJobsFile is returned for seed job lists that cannot be parsed.
	ErrInvalidJobsFile = errors.New("invalid job list")
)
