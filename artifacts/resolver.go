package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KyberNetwork/logger"
)

// Dependency is a pinned package, e.g. yearn/yearn-vaults@0.4.3
type Dependency struct {
	Org     string
	Repo    string
	Version string
}

// ParseDependency parses an org/repo@version spec
func ParseDependency(s string) (Dependency, error) {
	org, rest, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Dependency{}, fmt.Errorf("%w: %q", ErrInvalidDependency, s)
	}
	repo, version, ok := strings.Cut(rest, "@")
	if !ok || org == "" || repo == "" || version == "" || strings.ContainsAny(repo+version, "/@") {
		return Dependency{}, fmt.Errorf("%w: %q", ErrInvalidDependency, s)
	}
	return Dependency{Org: org, Repo: repo, Version: version}, nil
}

func (d Dependency) String() string {
	return d.Org + "/" + d.Repo + "@" + d.Version
}

// Dir is the package directory relative to the packages dir
func (d Dependency) Dir() string {
	return filepath.Join(d.Org, d.Repo+"@"+d.Version)
}

// Resolver finds artifacts of the project and of installed packages.
// Loaded artifacts are cached by path.
type Resolver struct {
	packagesDir string
	buildDir    string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewResolver creates a resolver over a packages dir (brownie keeps them in
// ~/.brownie/packages) and the project build dir
func NewResolver(packagesDir, buildDir string) *Resolver {
	return &Resolver{
		packagesDir: packagesDir,
		buildDir:    buildDir,
		cache:       map[string]*Artifact{},
	}
}

func (r *Resolver) PackagesDir() string {
	return r.packagesDir
}

func (r *Resolver) BuildDir() string {
	return r.buildDir
}

// Package returns the installed package for dependency spec s
func (r *Resolver) Package(s string) (*Package, error) {
	dep, err := ParseDependency(s)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(r.packagesDir, dep.Dir())
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s (looked in %s)", ErrPackageNotInstalled, dep, dir)
	}
	return &Package{Dependency: dep, dir: dir, r: r}, nil
}

// Project returns the project artifact called name
func (r *Resolver) Project(name string) (*Artifact, error) {
	return r.load(filepath.Join(r.buildDir, name+".json"), name)
}

func (r *Resolver) load(path, name string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.cache[path]; ok {
		return a, nil
	}
	a, err := Load(path, name)
	if err != nil {
		return nil, err
	}
	r.cache[path] = a
	logger.WithFields(logger.Fields{
		"contract": a.Name,
		"path":     path,
		"size":     len(a.Bytecode),
	}).Debug("Loaded artifact")
	return a, nil
}

// Package is an installed dependency package
type Package struct {
	Dependency

	dir string
	r   *Resolver
}

// Dir returns the package's directory on disk
func (p *Package) Dir() string {
	return p.dir
}

// Contract returns the package artifact called name
func (p *Package) Contract(name string) (*Artifact, error) {
	a, err := p.r.load(filepath.Join(p.dir, "build", "contracts", name+".json"), name)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			return nil, fmt.Errorf("%w: %s has no %s", ErrArtifactNotFound, p.Dependency, name)
		}
		return nil, err
	}
	return a, nil
}
