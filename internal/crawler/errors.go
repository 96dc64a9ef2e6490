package crawler

import "errors"

// Failure classes for page fetches and image downloads.
// The retry combinator retries ErrTransient only; everything else is
// logged and the single resource is skipped.
var (
	// ErrTransient marks network failures worth retrying: timeouts,
	// connection resets and dropped connections.
	ErrTransient = errors.New("transient network failure")

	// ErrPermanent marks failures that another attempt will not fix,
	// such as a 4xx/5xx status or content that cannot be decoded.
	ErrPermanent = errors.New("permanent fetch failure")

	// ErrTooSmall is returned for images below the minimum size.
	ErrTooSmall = errors.New("image below minimum size")

	// ErrTooLarge is returned for responses above the body size limit.
	ErrTooLarge = errors.New("response exceeds size limit")

	// ErrFilesystem marks local write failures.
	ErrFilesystem = errors.New("filesystem error")

	// ErrNotHTML is returned when a page response is not markup.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrSchedulerBusy is returned when Run is called on a scheduler
	// whose previous session has not finished.
	ErrSchedulerBusy = errors.New("scheduler is already running a session")

	// ErrInvalidRootURL is returned for seeds that are not absolute http(s) URLs.
	ErrInvalidRootURL = errors.New("root URL must be an absolute http or https URL")

	// ErrNoFolderName is returned when no folder name can be derived from a URL.
	ErrNoFolderName = errors.New("cannot derive folder name from URL")
)
