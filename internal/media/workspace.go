package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Workspace is a per-job scratch directory. Close removes it and everything in it.
type Workspace struct {
	dir string
}

// NewWorkspace creates <root>/<owner>/<random>.
func NewWorkspace(root, owner string) (*Workspace, error) {
	dir := filepath.Join(root, filepath.Base(owner), uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	log.Debug().Str("dir", dir).Msg("Created workspace")
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns a file path inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// TempName returns a unique file path with the given prefix and extension.
func (w *Workspace) TempName(prefix, ext string) string {
	return w.Path(fmt.Sprintf("%s-%s%s", prefix, uuid.New().String(), ext))
}

// Close is safe to call more than once.
func (w *Workspace) Close() error {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Warn().Err(err).Str("dir", w.dir).Msg("Failed to remove workspace")
		return err
	}
	log.Debug().Str("dir", w.dir).Msg("Removed workspace")
	return nil
}
