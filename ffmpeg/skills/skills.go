// Package skills finds out which version of ffprobe is available and how it
// has been built.
package skills

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/datarhei/p1203/process"

	"github.com/Masterminds/semver/v3"
)

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Build is the version information of the ffprobe binary
type Build struct {
	Version       string // Release version, empty if it isn't a release build
	Raw           string // Version as reported by the binary
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of a ffprobe binary
type Skills struct {
	Binary  string
	FFprobe Build
}

var (
	// ErrUnknownVersion is returned by Check if the binary isn't a release build
	// and its version can't be compared.
	ErrUnknownVersion = errors.New("unknown ffprobe version")

	// ErrUnsupportedVersion is returned by Check if the version doesn't satisfy
	// the constraint.
	ErrUnsupportedVersion = errors.New("unsupported ffprobe version")
)

// New returns the skills of the ffprobe binary
func New(ctx context.Context, binary string, runner process.Runner) (Skills, error) {
	if runner == nil {
		runner = process.NewRunner(process.Config{})
	}

	out, _, err := runner.Run(ctx, process.Command{
		Binary: binary,
		Args:   []string{"-version"},
	})
	if err != nil {
		return Skills{}, fmt.Errorf("can't get ffprobe version info: %w", err)
	}

	build := parseVersion(out)
	if len(build.Raw) == 0 {
		return Skills{}, fmt.Errorf("can't parse ffprobe version info")
	}

	return Skills{
		Binary:  binary,
		FFprobe: build,
	}, nil
}

// Check checks whether the version of ffprobe satisfies the semver constraint.
func (s Skills) Check(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint '%s': %w", constraint, err)
	}

	if len(s.FFprobe.Version) == 0 {
		return fmt.Errorf("%s: %w", s.FFprobe.Raw, ErrUnknownVersion)
	}

	v, err := semver.NewVersion(s.FFprobe.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", s.FFprobe.Raw, ErrUnknownVersion)
	}

	if !c.Check(v) {
		return fmt.Errorf("version %s doesn't satisfy '%s': %w", s.FFprobe.Version, constraint, ErrUnsupportedVersion)
	}

	return nil
}

var (
	reRaw           = regexp.MustCompile(`^ffprobe version (\S+)`)
	reVersion       = regexp.MustCompile(`^ffprobe version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
)

func parseVersion(data []byte) Build {
	b := Build{}

	if matches := reRaw.FindSubmatch(data); matches != nil {
		b.Raw = string(matches[1])
	}

	if matches := reVersion.FindSubmatch(data); matches != nil {
		b.Version = string(matches[1])
		if len(matches[2]) == 0 {
			b.Version = b.Version + ".0"
		}
	}

	if matches := reCompiler.FindSubmatch(data); matches != nil {
		b.Compiler = string(matches[1])
	}

	if matches := reConfiguration.FindSubmatch(data); matches != nil {
		b.Configuration = string(matches[1])
	}

	for _, matches := range reLibrary.FindAllSubmatch(data, -1) {
		l := Library{
			Name:     string(matches[1]),
			Compiled: string(matches[2]),
			Linked:   string(matches[3]),
		}

		b.Libraries = append(b.Libraries, l)
	}

	return b
}
