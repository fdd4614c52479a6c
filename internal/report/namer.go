// Package report names, renders, writes and parses the Markdown analysis
// reports that make up the corpus.
//
// Report files live in one flat directory and are named
// YYYYMMDD_HHMMSS_<slug>.md so that a plain lexical sort is chronological.
// Files are created once and never rewritten.
package report

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultSlugMaxLength caps the slug part of a report file name.
const DefaultSlugMaxLength = 60

// MinSlugMaxLength is the smallest slug cap a Namer accepts. Below it a
// collision suffix such as "_12" would not fit.
const MinSlugMaxLength = 8

// timestampLayout is the UTC prefix of every report file name.
const timestampLayout = "20060102_150405"

const fallbackSlug = "untitled"

var (
	nonSlugRun   = regexp.MustCompile(`[^a-z0-9]+`)
	reportNameRe = regexp.MustCompile(`^\d{8}_\d{6}_[a-z0-9_]+\.md$`)
)

// Slugify derives a filesystem-safe slug from title: lowercased, every run
// of characters outside [a-z0-9] collapsed to a single underscore, edges
// trimmed, and capped at maxLen characters. An empty result becomes
// "untitled".
func Slugify(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSlugMaxLength
	}

	slug := nonSlugRun.ReplaceAllString(strings.ToLower(title), "_")
	slug = strings.Trim(slug, "_")

	if len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "_")
	}
	if slug == "" {
		slug = fallbackSlug
		if len(slug) > maxLen {
			slug = slug[:maxLen]
		}
	}
	return slug
}

// MakeFilename returns the report file name for an article titled title
// analyzed at ts. It is a pure function of its inputs.
func MakeFilename(ts time.Time, title string, maxLen int) string {
	return ts.UTC().Format(timestampLayout) + "_" + Slugify(title, maxLen) + ".md"
}

// IsReportName reports whether name looks like a generated report file
// name. It rejects anything containing a path separator.
func IsReportName(name string) bool {
	return reportNameRe.MatchString(name)
}

// Namer hands out unique report file names within one directory. Names
// already present on disk and names handed out earlier are both reserved;
// a colliding name gets a numeric suffix (_2, _3, ...).
type Namer struct {
	maxLen   int
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewNamer creates a Namer with nothing reserved. A maxLen of zero or less
// uses DefaultSlugMaxLength; other values below MinSlugMaxLength are raised
// to it.
func NewNamer(maxLen int) *Namer {
	if maxLen <= 0 {
		maxLen = DefaultSlugMaxLength
	}
	maxLen = max(maxLen, MinSlugMaxLength)
	return &Namer{
		maxLen:   maxLen,
		reserved: make(map[string]struct{}),
	}
}

// NewNamerForDir creates a Namer that treats every file already in dir as
// taken. A missing directory reserves nothing.
func NewNamerForDir(dir string, maxLen int) (*Namer, error) {
	n := NewNamer(maxLen)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return n, nil
		}
		return nil, fmt.Errorf("listing report directory %q: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			n.reserved[e.Name()] = struct{}{}
		}
	}
	return n, nil
}

// Reserve returns a file name for (ts, title) that no earlier call returned
// and that did not exist when the Namer was created.
func (n *Namer) Reserve(ts time.Time, title string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	prefix := ts.UTC().Format(timestampLayout) + "_"
	slug := Slugify(title, n.maxLen)

	name := prefix + slug + ".md"
	for i := 2; ; i++ {
		if _, taken := n.reserved[name]; !taken {
			break
		}
		name = prefix + suffixedSlug(slug, i, n.maxLen) + ".md"
	}

	n.reserved[name] = struct{}{}
	return name
}

// Release makes name available again. It is used when a reserved name was
// never written.
func (n *Namer) Release(name string) {
	n.mu.Lock()
	delete(n.reserved, name)
	n.mu.Unlock()
}

// suffixedSlug appends _i to slug, shortening slug so the result still fits
// in maxLen characters.
func suffixedSlug(slug string, i, maxLen int) string {
	suffix := "_" + strconv.Itoa(i)
	room := maxLen - len(suffix)
	if room < 1 {
		room = 1
	}
	if len(slug) > room {
		slug = strings.TrimRight(slug[:room], "_")
		if slug == "" {
			slug = "r"
		}
	}
	return slug + suffix
}
