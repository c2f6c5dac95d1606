// Package assembly merges pass fragments into the answer-file template and
// writes the assembled document.
//
// Assembly is plain text substitution: each pass owns one placeholder token
// in the template and one optional fragment file on disk. A missing fragment
// substitutes as an empty string so a partial fragment set still produces a
// usable document.
package assembly

import (
	"os"
	"path/filepath"

	"github.com/conneroisu/winforge/internal/types"
)

// FragmentStore resolves and reads pass fragments from a fragments directory.
type FragmentStore struct {
	dir string
}

// NewFragmentStore creates a fragment store rooted at dir.
func NewFragmentStore(dir string) *FragmentStore {
	return &FragmentStore{dir: dir}
}

// Dir returns the fragments directory.
func (s *FragmentStore) Dir() string {
	return s.dir
}

// Path returns the on-disk location of the fragment for a pass.
func (s *FragmentStore) Path(pass types.Pass) string {
	return filepath.Join(s.dir, pass.FragmentFile())
}

// Load reads the fragment for a pass verbatim, without trimming or newline
// normalization. Callers distinguish a missing fragment from a failed read
// via os.IsNotExist.
func (s *FragmentStore) Load(pass types.Pass) (string, error) {
	data, err := os.ReadFile(s.Path(pass))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Describe stats the fragment for a pass. Absent files yield Present=false
// with zero size rather than an error.
func (s *FragmentStore) Describe(pass types.Pass) types.FragmentInfo {
	info := types.FragmentInfo{
		Pass:        pass,
		Placeholder: pass.Placeholder(),
		Path:        s.Path(pass),
	}

	if fi, err := os.Stat(info.Path); err == nil && fi.Mode().IsRegular() {
		info.Present = true
		info.Size = fi.Size()
		info.ModTime = fi.ModTime()
	}

	return info
}

// List describes every pass fragment in substitution order.
func (s *FragmentStore) List() []types.FragmentInfo {
	infos := make([]types.FragmentInfo, 0, len(types.AllPasses))
	for _, pass := range types.AllPasses {
		infos = append(infos, s.Describe(pass))
	}
	return infos
}
