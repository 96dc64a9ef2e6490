package dedup

import (
	"sort"

	"github.com/nao1215/imgharvest/internal/model"
)

// FindDuplicates groups records by digest and returns every group with more
// than one member. Groups are ordered by digest and members by path.
func FindDuplicates(records []model.RemoteFileRecord) []model.DuplicateGroup {
	byDigest := make(map[string][]model.RemoteFileRecord)
	for _, rec := range records {
		if rec.Digest == "" {
			continue
		}
		byDigest[rec.Digest] = append(byDigest[rec.Digest], rec)
	}

	groups := make([]model.DuplicateGroup, 0)
	for d, files := range byDigest {
		if len(files) < 2 {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, model.DuplicateGroup{Digest: d, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Digest < groups[j].Digest })
	return groups
}

// Resolve orders one group by creation time according to policy and keeps
// the first member. Ties are broken by path so the choice is stable.
func Resolve(g model.DuplicateGroup, policy DatePolicy) model.GroupResolution {
	files := append([]model.RemoteFileRecord(nil), g.Files...)
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i].Created.Time, files[j].Created.Time
		if !a.Equal(b) {
			if policy == DeleteOlder {
				return a.After(b)
			}
			return a.Before(b)
		}
		return files[i].Path < files[j].Path
	})
	return model.GroupResolution{
		Digest: g.Digest,
		Keep:   files[0],
		Delete: files[1:],
	}
}

// PlanSizePurge returns every record whose size is at or below threshold,
// ordered by path. A non-positive threshold selects nothing.
func PlanSizePurge(records []model.RemoteFileRecord, threshold int64) []model.RemoteFileRecord {
	if threshold <= 0 {
		return nil
	}
	var out []model.RemoteFileRecord
	for _, rec := range records {
		if rec.Size <= threshold {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PlanOptions selects the passes a plan contains.
type PlanOptions struct {
	// Duplicates enables duplicate resolution.
	Duplicates bool
	Policy     DatePolicy

	// PurgeThreshold enables the size purge when positive.
	PurgeThreshold int64
}

// Plan builds a ResolutionPlan for records.
func Plan(records []model.RemoteFileRecord, opts PlanOptions) *model.ResolutionPlan {
	plan := &model.ResolutionPlan{Scanned: len(records)}
	if opts.Duplicates {
		policy := opts.Policy
		if policy == "" {
			policy = DefaultPolicy
		}
		plan.Policy = string(policy)
		for _, g := range FindDuplicates(records) {
			plan.Groups = append(plan.Groups, Resolve(g, policy))
		}
	}
	if opts.PurgeThreshold > 0 {
		plan.PurgeThreshold = opts.PurgeThreshold
		plan.Purge = PlanSizePurge(records, opts.PurgeThreshold)
	}
	return plan
}
