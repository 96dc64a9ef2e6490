package model

// Job is one independent crawl session: a seed URL, the folder its images
// go to, and the link depth to follow.
type Job struct {
	// URL is the seed page.
	URL string `json:"url" yaml:"url"`

	// Folder is the output folder name, relative to the output root and
	// reused as the remote folder name on sync.
	Folder string `json:"folder" yaml:"folder"`

	// MaxDepth is the link distance from the seed; 0 fetches only the seed.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}
