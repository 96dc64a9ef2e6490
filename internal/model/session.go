package model

import "time"

// SessionReport summarises one crawl session and the sync that followed it.
type SessionReport struct {
	// ID is the history database row id, zero until recorded.
	ID int64 `json:"id,omitempty"`

	RootURL    string `json:"root_url"`
	Folder     string `json:"folder"`
	OutputDir  string `json:"output_dir"`
	MaxDepth   int    `json:"max_depth"`
	MaxWorkers int    `json:"max_workers"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Waves is the number of page-fetch waves run.
	Waves int `json:"waves"`

	PagesFetched int `json:"pages_fetched"`
	PagesFailed  int `json:"pages_failed"`

	// ImagesDiscovered counts image URLs claimed for download.
	ImagesDiscovered int `json:"images_discovered"`
	ImagesDownloaded int `json:"images_downloaded"`
	ImagesKnown      int `json:"images_known"`
	ImagesTooSmall   int `json:"images_too_small"`
	ImagesDuplicate  int `json:"images_duplicate"`
	ImagesFailed     int `json:"images_failed"`

	// Sync is set when the output folder was pushed to the remote store.
	Sync *SyncReport `json:"sync,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Errors collects job-level failures (store save, remote connection).
	// Per-image and per-page failures are only counted.
	Errors []string `json:"errors,omitempty"`
}

// NewSessionReport returns a report for job started now.
func NewSessionReport(job Job) *SessionReport {
	return &SessionReport{
		RootURL:   job.URL,
		Folder:    job.Folder,
		MaxDepth:  job.MaxDepth,
		StartedAt: time.Now(),
	}
}

// Job returns the job this session ran.
func (r *SessionReport) Job() Job {
	return Job{URL: r.RootURL, Folder: r.Folder, MaxDepth: r.MaxDepth}
}

// Duration is the wall time of the session, or zero if it has not finished.
func (r *SessionReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// AddError records a job-level failure.
func (r *SessionReport) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Failed reports whether a job-level failure was recorded.
func (r *SessionReport) Failed() bool {
	return len(r.Errors) > 0
}

// SyncMode selects what happens to local files after transfer.
type SyncMode string

const (
	// SyncCopy leaves local files in place.
	SyncCopy SyncMode = "copy"
	// SyncMove deletes local files after transfer and the folder once empty.
	SyncMove SyncMode = "move"
)

// SyncReport summarises one RemoteSync run.
type SyncReport struct {
	LocalDir  string   `json:"local_dir"`
	RemoteDir string   `json:"remote_dir"`
	Mode      SyncMode `json:"mode"`

	// CreatedRemoteDir is true when the remote folder did not exist.
	CreatedRemoteDir bool `json:"created_remote_dir"`

	Transferred      int   `json:"transferred"`
	BytesTransferred int64 `json:"bytes_transferred"`
	SkippedExisting  int   `json:"skipped_existing"`
	DeletedSmall     int   `json:"deleted_small"`
	Failed           int   `json:"failed"`

	// FailedFiles lists local names whose transfer failed.
	FailedFiles []string `json:"failed_files,omitempty"`

	// LocalDirRemoved is true when move mode removed the emptied folder.
	LocalDirRemoved bool `json:"local_dir_removed"`
}
