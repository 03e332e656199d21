// Package cache owns the on-disk layout of extracted artifacts. It maps an
// ArtifactKey onto StoragePath/<hub>/<owner>/<project>/<version>, hands out
// staging directories for in-progress extractions, and publishes them with a
// rename so readers only ever observe complete version trees. Freshness
// decisions are expressed through FreshnessPolicy so the mirror package can
// decide whether an entry may be served without contacting the upstream.
package cache
