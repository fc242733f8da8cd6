package domain

import "fmt"

// =============================================================================
// Artifact and Image References
// =============================================================================

// ArtifactRef identifies a built deployable unit produced by the build
// collaborator. TestReport is optional and kept only for archival.
type ArtifactRef struct {
	Path       string `json:"path"`
	TestReport string `json:"test_report,omitempty"`
}

// TagLatest is the mutable convenience alias pushed alongside every immutable
// per-run tag. Rendered manifests never reference it.
const TagLatest = "latest"

// ImageRef identifies a container image by repository and tag.
type ImageRef struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// NewImageRef derives the immutable per-run image reference from a monotonic
// build number. Re-running with the same build number yields the same tag, so
// a re-push of identical content is a no-op.
func NewImageRef(repository string, buildNumber int) ImageRef {
	return ImageRef{
		Repository: repository,
		Tag:        fmt.Sprintf("v%d", buildNumber),
	}
}

// WithTag returns a copy of the reference pointing at a different tag.
func (r ImageRef) WithTag(tag string) ImageRef {
	r.Tag = tag
	return r
}

// String returns the repository:tag form used by registries and manifests.
func (r ImageRef) String() string {
	return r.Repository + ":" + r.Tag
}
