package build

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Source is one document found in the source directory.
type Source struct {
	// Path is slash separated and relative to the source directory.
	Path string
	Abs  string
}

// Kind reports how a source is compiled.
func (s Source) Kind() SourceKind {
	if strings.HasSuffix(strings.ToLower(s.Path), hastSuffix) {
		return KindHast
	}
	switch strings.ToLower(path.Ext(s.Path)) {
	case ".md", ".markdown":
		return KindMarkdown
	case ".html", ".htm":
		return KindHTML
	default:
		return ""
	}
}

// SourceKind is the input format of a source.
type SourceKind string

const (
	KindMarkdown SourceKind = "markdown"
	KindHTML     SourceKind = "html"
	KindHast     SourceKind = "hast" // raw hast JSON, annotated upstream
)

const hastSuffix = ".hast.json"

// Discover lists the compilable sources under dir matching include and not
// matching exclude, sorted by path.
func Discover(dir string, include, exclude []string) ([]Source, error) {
	var out []Source
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		src := Source{Path: rel, Abs: p}
		if src.Kind() == "" || !Matches(rel, include, exclude) {
			return nil
		}
		out = append(out, src)
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "walk source directory").
			WithContext("dir", dir).
			Build()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Matches reports whether rel matches an include pattern and no exclude
// pattern. An empty include list matches everything.
func Matches(rel string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if matchGlob(pattern, rel) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// matchGlob is path.Match extended with "**" segments matching any number of
// directories.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if matchSegments(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], name[0]); err != nil || !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// Slug derives a document slug from its source path.
func Slug(rel string) string {
	if strings.HasSuffix(strings.ToLower(rel), hastSuffix) {
		rel = rel[:len(rel)-len(hastSuffix)]
	} else {
		rel = strings.TrimSuffix(rel, path.Ext(rel))
	}
	if base := path.Base(rel); base == "index" || base == "_index" || base == "README" {
		rel = path.Dir(rel)
		if rel == "." {
			return "index"
		}
	}
	return rel
}
