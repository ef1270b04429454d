// Package domain models community incident reports and proximity alert
// subscriptions.
//
// # Reports
//
// A report is a single sighting placed on the map. It is created once, after
// the address has been geocoded and the dedup index has cleared it, and the
// core never mutates it afterwards. Moderation state lives with the
// persistence collaborator; the core only reads [Status] to decide whether an
// accepted report may be alerted on.
//
// Categories, most urgent first:
//
//	CRITICAL  enforcement action in progress
//	ACTIVE    agents present and active
//	OBSERVED  vehicles or agents seen, no action
//	OTHER     anything else
//
// # Source keys
//
// The dedup criterion is the normalized address text, see [SourceKey]:
//
//	"725  45th Avenue North, Minneapolis"  →  "725-45th-avenue-north,-minneapolis"
//
// Two reports at the same address collapse into one regardless of category or
// occurrence time. This merges genuinely distinct events at a busy address,
// which is the known coarse-grained limitation of address-keyed dedup.
//
// # Distances
//
// All distances are statute miles on a spherical Earth of radius 3959 mi
// (haversine). Subscription radii are bounded to [MinRadiusMiles,
// MaxRadiusMiles].
package domain
