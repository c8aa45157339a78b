package policy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPoliciesDir is the policy directory name inside the data directory.
// Every .rego file under it is evaluated at intake.
const DefaultPoliciesDir = "policies"

// PolicyFile is a loaded Rego source file.
type PolicyFile struct {
	// Path is where the file was read from, as given to the loader.
	Path string `json:"path"`
	// Name is the base name without .rego. Engine.PolicyNames reports it.
	Name string `json:"name"`
	// Content is the Rego source, compiled later by the engine.
	Content string `json:"content"`
}

// Loader reads intake policies from a directory tree on an afero.Fs.
// NewEngine loads from the data directory; policy validate loads whatever
// paths it is given.
type Loader struct {
	fs      afero.Fs
	baseDir string // e.g. ~/.taskmail/policies
}

// NewLoader creates a loader rooted at baseDir. baseDir may be empty when
// only LoadPaths is used. Pass afero.NewOsFs() in production and
// afero.NewMemMapFs() in tests.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// LoadAll loads every .rego file under the base directory, recursing into
// subdirectories, sorted by path. Other files are ignored. A missing
// directory yields no policies, which means every email is admitted.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return []*PolicyFile{}, nil
	}

	var policies []*PolicyFile
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		p, err := l.loadFile(path)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", path, err)
		}
		policies = append(policies, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}

	// Policies evaluate in path order.
	sort.Slice(policies, func(i, j int) bool { return policies[i].Path < policies[j].Path })
	return policies, nil
}

// LoadPaths loads each path as a single policy file, or as a directory tree
// when it is one. Unlike LoadAll, a missing path is an error.
func (l *Loader) LoadPaths(paths ...string) ([]*PolicyFile, error) {
	var out []*PolicyFile
	for _, path := range paths {
		isDir, err := afero.IsDir(l.fs, path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if isDir {
			found, err := NewLoader(l.fs, path).LoadAll()
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
			continue
		}
		p, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load policy %s: %w", path, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// loadFile reads one policy file. It does not check the extension.
func (l *Loader) loadFile(path string) (*PolicyFile, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}

// PoliciesPath returns the default policy directory for a data directory.
func PoliciesPath(dataDir string) string {
	return filepath.Join(dataDir, DefaultPoliciesDir)
}
