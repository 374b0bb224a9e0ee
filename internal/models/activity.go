package models

import "strings"

// Activity codes a clearance can cover. ActivityUniverse is ordered; the
// restricted set of a permit is the ordered complement of its allowed set.
const (
	ActivityPublicHealth = "public_health_pest_control"
	ActivityTermite      = "termite_control"
	ActivityGrainPests   = "grain_pests"
)

var ActivityUniverse = []string{ActivityPublicHealth, ActivityTermite, ActivityGrainPests}

// ActivityLabels maps codes to display names for list views and the printed
// certificate.
var ActivityLabels = map[string]string{
	ActivityPublicHealth: "Public Health Pest Control",
	ActivityTermite:      "Termite Control",
	ActivityGrainPests:   "Grain Pests Control",
}

// AllowedActivitiesFor derives the activity codes an engineer's
// certifications permit.
func AllowedActivitiesFor(hasPublicHealthCert, hasTermiteCert bool) []string {
	allowed := make([]string, 0, len(ActivityUniverse))
	if hasPublicHealthCert {
		allowed = append(allowed, ActivityPublicHealth, ActivityGrainPests)
	}
	if hasTermiteCert {
		allowed = append(allowed, ActivityTermite)
	}
	return NormalizeActivities(allowed)
}

// NormalizeActivities orders the allowed set by the universe and prepends
// public health pest control whenever termite control is present without it.
func NormalizeActivities(allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	if _, hasTermite := set[ActivityTermite]; hasTermite {
		set[ActivityPublicHealth] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for _, a := range ActivityUniverse {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// RestrictedActivities returns the ordered complement of the allowed set.
func RestrictedActivities(allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	out := make([]string, 0, len(ActivityUniverse))
	for _, a := range ActivityUniverse {
		if _, ok := set[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// JoinActivities encodes an activity list in the stored comma-delimited form.
func JoinActivities(activities []string) string {
	return strings.Join(activities, ",")
}

// SplitActivities decodes the stored comma-delimited form, dropping empties.
func SplitActivities(stored string) []string {
	if stored == "" {
		return nil
	}
	parts := strings.Split(stored, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
