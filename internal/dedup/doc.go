// Package dedup finds and removes duplicate and undersized files in the
// remote store.
//
// Work happens in two phases. Planning is pure: FindDuplicates groups
// inventory records by digest, Plan picks one survivor per group using a
// DatePolicy, and PlanSizePurge selects every file at or below a size
// threshold. The resulting model.ResolutionPlan can be printed for review.
// Executing it is a separate step performed by Resolver, which issues the
// deletes and reports each success or failure.
//
// DatePolicy names say what is deleted:
//
//	delete-newer  keep the oldest copy, delete later ones
//	delete-older  keep the newest copy, delete earlier ones
//
// The legacy names "newer" and "older" are accepted as aliases.
package dedup
