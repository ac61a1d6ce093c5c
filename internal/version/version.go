// Package version maps user-facing version tokens to canonical identifiers
// and source refs, and enumerates the versions available locally.
package version

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/docsearch-mcp/internal/layout"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

const (
	// Latest is the token for the unversioned documentation.
	Latest = "latest"

	// DefaultRef is the source ref for Latest and the fallback when a
	// versioned ref does not exist.
	DefaultRef = "main"

	refPrefix = "sdk-"
)

var formatPattern = regexp.MustCompile(`^(v\d+|latest)$`)

// Resolved is a validated version token and the source ref it maps to.
type Resolved struct {
	Canonical string
	Ref       string
}

// Resolver validates version tokens and reports local availability.
type Resolver struct {
	layout *layout.Layout
}

// NewResolver creates a Resolver over the given storage layout.
func NewResolver(l *layout.Layout) *Resolver {
	return &Resolver{layout: l}
}

// IsValidFormat reports whether token is "latest" or v followed by digits.
// It does not check availability.
func IsValidFormat(token string) bool {
	return formatPattern.MatchString(token)
}

// IsValidFormat reports whether token is syntactically valid.
func (r *Resolver) IsValidFormat(token string) bool {
	return IsValidFormat(token)
}

// Resolve maps token to its canonical form and intended source ref:
// latest → main, vNN → sdk-NN.
func (r *Resolver) Resolve(token string) (Resolved, error) {
	if !IsValidFormat(token) {
		return Resolved{}, &types.InvalidVersionFormatError{Token: token}
	}
	if token == Latest {
		return Resolved{Canonical: token, Ref: DefaultRef}, nil
	}
	return Resolved{Canonical: token, Ref: refPrefix + strings.TrimPrefix(token, "v")}, nil
}

// ListAvailable returns versions with a vector index on disk, latest first
// and then in descending numeric order.
func (r *Resolver) ListAvailable() ([]string, error) {
	dirs, err := r.layout.VersionDirs()
	if err != nil {
		return nil, err
	}

	var available []string
	for _, d := range dirs {
		if IsValidFormat(d) && r.layout.HasVectorIndex(d) {
			available = append(available, d)
		}
	}
	Sort(available)
	return available, nil
}

// DescribeMissing builds a message naming token and the versions that are
// currently available.
func (r *Resolver) DescribeMissing(token string) string {
	available, err := r.ListAvailable()
	if err != nil || len(available) == 0 {
		return fmt.Sprintf("Version %s is not available. No versions are initialized; run `docsearch init %s` first.", token, token)
	}
	return fmt.Sprintf("Version %s is not available. Available versions: %s", token, strings.Join(available, ", "))
}

// Sort orders versions latest first, then vNN by descending number.
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return less(versions[i], versions[j])
	})
}

func less(a, b string) bool {
	if a == Latest || b == Latest {
		return a == Latest && b != Latest
	}
	na, errA := strconv.ParseUint(strings.TrimPrefix(a, "v"), 10, 64)
	nb, errB := strconv.ParseUint(strings.TrimPrefix(b, "v"), 10, 64)
	if errA != nil || errB != nil {
		return a > b
	}
	return na > nb
}
