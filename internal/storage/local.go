package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/videgen/internal/apperr"
)

const (
	DefaultURLPrefix    = "/temp"
	maxAllocateAttempts = 5
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// LocalStore is an ArtifactStore rooted at a directory on local disk.
// Each project owns root/<projectID>; locators look like /temp/<projectID>/<filename>.
type LocalStore struct {
	root      string
	urlPrefix string
}

func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", abs, err)
	}

	prefix := "/" + strings.Trim(urlPrefix, "/")
	if prefix == "/" {
		prefix = DefaultURLPrefix
	}
	return &LocalStore{root: abs, urlPrefix: prefix}, nil
}

func (s *LocalStore) Root() string      { return s.root }
func (s *LocalStore) URLPrefix() string { return s.urlPrefix }

// ValidateProjectID rejects ids that could escape the storage root.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return apperr.Validation("projectId is invalid")
	}
	return nil
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return apperr.Validation("filename is invalid")
	}
	return nil
}

func newProjectID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("project-%d-%s", time.Now().UnixMilli(), suffix)
}

// AllocateProject creates a fresh project directory with an exclusive mkdir,
// so two callers can never be handed the same id.
func (s *LocalStore) AllocateProject(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", apperr.Storage("Failed to create project", fmt.Errorf("create storage root: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.Storage("Failed to create project", err)
		}
		id := newProjectID()
		err := os.Mkdir(filepath.Join(s.root, id), 0o755)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", apperr.Storage("Failed to create project", fmt.Errorf("mkdir project %s: %w", id, err))
		}
		lastErr = err
	}
	return "", apperr.Storage("Failed to create project",
		fmt.Errorf("allocate project after %d attempts: %w", maxAllocateAttempts, lastErr))
}

func (s *LocalStore) EnsureProjectDirectory(_ context.Context, projectID string) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.projectDir(projectID), 0o755); err != nil {
		return apperr.Storage("Failed to prepare project directory", fmt.Errorf("mkdir %s: %w", projectID, err))
	}
	return nil
}

// Save writes data through a temp file and a rename, so a repeated filename
// is replaced whole and readers never observe a partial write.
func (s *LocalStore) Save(ctx context.Context, projectID, filename string, data []byte) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	if err := s.EnsureProjectDirectory(ctx, projectID); err != nil {
		return "", err
	}

	dir := s.projectDir(projectID)
	tmp, err := os.CreateTemp(dir, "."+filename+".*.tmp")
	if err != nil {
		return "", apperr.Storage("Failed to save artifact", fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", apperr.Storage("Failed to save artifact", fmt.Errorf("write %s: %w", filename, err))
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		cleanup()
		return "", apperr.Storage("Failed to save artifact", fmt.Errorf("chmod %s: %w", filename, err))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", apperr.Storage("Failed to save artifact", fmt.Errorf("close %s: %w", filename, err))
	}
	if err := os.Rename(tmpName, filepath.Join(dir, filename)); err != nil {
		cleanup()
		return "", apperr.Storage("Failed to save artifact", fmt.Errorf("rename %s: %w", filename, err))
	}

	return s.Locator(projectID, filename), nil
}

func (s *LocalStore) Open(_ context.Context, projectID, filename string) (io.ReadCloser, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.projectDir(projectID), filename))
	if err != nil {
		return nil, apperr.Storage("Failed to open artifact", fmt.Errorf("open %s/%s: %w", projectID, filename, err))
	}
	return f, nil
}

func (s *LocalStore) Locator(projectID, filename string) string {
	return path.Join(s.urlPrefix, projectID, filename)
}

func (s *LocalStore) Resolve(locator string) (string, bool) {
	projectID, filename, ok := s.split(locator)
	if !ok {
		return "", false
	}
	return filepath.Join(s.projectDir(projectID), filename), true
}

func (s *LocalStore) ProjectOf(locator string) (string, bool) {
	projectID, _, ok := s.split(locator)
	return projectID, ok
}

func (s *LocalStore) split(locator string) (projectID, filename string, ok bool) {
	u, err := url.Parse(locator)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "", "", false
	}
	rest, found := strings.CutPrefix(u.Path, s.urlPrefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	if ValidateProjectID(parts[0]) != nil || validateFilename(parts[1]) != nil {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *LocalStore) projectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}
