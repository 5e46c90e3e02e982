// Package glob expands file patterns like segments/*.mp4 or seg_{1,2,3}.mkv
// into the list of matching files.
package glob

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

type Glob interface {
	Match(name string) bool
	Prefix() string
}

type globber struct {
	pattern string
	glob    glob.Glob
}

func MustCompile(pattern string, separators ...rune) Glob {
	g := glob.MustCompile(pattern, separators...)

	return &globber{pattern: pattern, glob: g}
}

func Compile(pattern string, separators ...rune) (Glob, error) {
	g, err := glob.Compile(pattern, separators...)
	if err != nil {
		return nil, err
	}

	return &globber{pattern: pattern, glob: g}, nil
}

func (g *globber) Match(name string) bool {
	return g.glob.Match(name)
}

func (g *globber) Prefix() string {
	return Prefix(g.pattern)
}

// Prefix returns the part of the pattern before the first meta character.
func Prefix(pattern string) string {
	index := strings.IndexAny(pattern, "*?[{")
	if index == -1 {
		return pattern
	}

	return strings.Clone(pattern[:index])
}

// IsPattern returns whether the string contains any meta character.
func IsPattern(pattern string) bool {
	index := strings.IndexAny(pattern, "*?[{")
	return index != -1
}

// Match returns whether the name matches the glob pattern, also considering
// one or several optionnal separator. An error is only returned if the pattern
// is invalid.
func Match(pattern, name string, separators ...rune) (bool, error) {
	g, err := Compile(pattern, separators...)
	if err != nil {
		return false, err
	}

	return g.Match(name), nil
}

// Expand returns the files that match the pattern, sorted by name. A * doesn't
// match across directories, a ** does. Paths are returned in the same form as the
// pattern, i.e. relative patterns give relative paths. A pattern without any
// meta character is returned as is, regardless whether the file exists.
func Expand(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)

	if !IsPattern(pattern) {
		return []string{filepath.FromSlash(pattern)}, nil
	}

	g, err := Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	dirPrefix := ""
	if i := strings.LastIndex(g.Prefix(), "/"); i != -1 {
		dirPrefix = pattern[:i+1]
	}

	root := dirPrefix
	if len(root) == 0 {
		root = "."
	}

	maxDepth := -1
	if !strings.Contains(pattern, "**") {
		maxDepth = strings.Count(pattern[len(dirPrefix):], "/")
	}

	files := []string{}

	err = filepath.WalkDir(filepath.FromSlash(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == filepath.FromSlash(root) && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}

			return err
		}

		rel, err := filepath.Rel(filepath.FromSlash(root), path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && maxDepth != -1 && strings.Count(rel, "/") >= maxDepth {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		name := dirPrefix + rel
		if g.Match(name) {
			files = append(files, filepath.FromSlash(name))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}
