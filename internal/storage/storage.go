package storage

import (
	"context"
	"io"
)

// ArtifactStore keeps every artifact of a project under one directory and
// hands out locators the HTTP layer can serve.
type ArtifactStore interface {
	AllocateProject(ctx context.Context) (string, error)
	EnsureProjectDirectory(ctx context.Context, projectID string) error
	Save(ctx context.Context, projectID, filename string, data []byte) (string, error)
	Open(ctx context.Context, projectID, filename string) (io.ReadCloser, error)
	Locator(projectID, filename string) string
	// Resolve maps a locator produced by Locator back to a local path.
	Resolve(locator string) (path string, ok bool)
	// ProjectOf extracts the project id from a locator produced by Locator.
	ProjectOf(locator string) (projectID string, ok bool)
}
