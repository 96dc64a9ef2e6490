package model

import "sort"

// DuplicateGroup is a set of remote files with the same digest.
// A group always has at least two members.
type DuplicateGroup struct {
	Digest string             `json:"hash"`
	Files  []RemoteFileRecord `json:"files"`
}

// Size returns the number of files in the group.
func (g DuplicateGroup) Size() int {
	return len(g.Files)
}

// GroupResolution is the decision for one DuplicateGroup: exactly one
// survivor and every other member deleted.
type GroupResolution struct {
	Digest string             `json:"hash"`
	Keep   RemoteFileRecord   `json:"keep"`
	Delete []RemoteFileRecord `json:"delete"`
}

// ResolutionPlan lists every deletion a dedup or purge run intends to make.
type ResolutionPlan struct {
	// Policy is the date policy used to pick survivors.
	Policy string `json:"policy,omitempty"`

	// PurgeThreshold is the size limit for the size purge; zero when the
	// purge was not requested.
	PurgeThreshold int64 `json:"purge_threshold,omitempty"`

	// Scanned is the number of inventory records considered.
	Scanned int `json:"scanned"`

	Groups []GroupResolution   `json:"groups,omitempty"`
	Purge  []RemoteFileRecord `json:"purge,omitempty"`
}

// Deletions returns every record the plan deletes, duplicates first, with
// each path listed once and ordered by path within each section.
func (p *ResolutionPlan) Deletions() []RemoteFileRecord {
	seen := make(map[string]struct{})
	var out []RemoteFileRecord

	var dups []RemoteFileRecord
	for _, g := range p.Groups {
		dups = append(dups, g.Delete...)
	}
	purge := append([]RemoteFileRecord(nil), p.Purge...)
	for _, section := range [][]RemoteFileRecord{dups, purge} {
		sort.SliceStable(section, func(i, j int) bool { return section[i].Path < section[j].Path })
		for _, rec := range section {
			if _, ok := seen[rec.Path]; ok {
				continue
			}
			seen[rec.Path] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// ReclaimableBytes is the total size of Deletions.
func (p *ResolutionPlan) ReclaimableBytes() int64 {
	var total int64
	for _, rec := range p.Deletions() {
		total += rec.Size
	}
	return total
}

// Empty reports whether the plan deletes nothing.
func (p *ResolutionPlan) Empty() bool {
	return len(p.Groups) == 0 && len(p.Purge) == 0
}

// DeletionFailure is a planned deletion the remote store refused.
type DeletionFailure struct {
	Record RemoteFileRecord `json:"record"`
	Error  string           `json:"error"`
}

// ResolutionResult reports what executing a plan actually did.
type ResolutionResult struct {
	Deleted []RemoteFileRecord `json:"deleted"`
	Failed  []DeletionFailure  `json:"failed,omitempty"`
}

// FreedBytes is the total size of Deleted.
func (r *ResolutionResult) FreedBytes() int64 {
	var total int64
	for _, rec := range r.Deleted {
		total += rec.Size
	}
	return total
}
