// Package photos reads the raw photo library: one directory per subject under a
// data root, each holding that subject's captured photos.
package photos

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
)

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrPhotoNotFound   = errors.New("photo not found")
)

// Subject is a directory of raw photos.
type Subject struct {
	Name       string `json:"name"`
	PhotoCount int    `json:"total_photos"`
}

// Photo is one raw photo of a subject.
type Photo struct {
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// Library lists subjects and photos below root. The crops directory is skipped
// when it lives inside root.
type Library struct {
	root     string
	cropsDir string
}

// NewLibrary creates a library rooted at root.
func NewLibrary(root, cropsDir string) *Library {
	return &Library{root: filepath.Clean(root), cropsDir: filepath.Clean(cropsDir)}
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Subjects returns every subject directory holding at least one photo, sorted by
// name. A missing root is an empty library.
func (l *Library) Subjects() ([]Subject, error) {
	entries, err := os.ReadDir(l.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []Subject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading photo library: %w", err)
	}

	subjects := []Subject{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(l.root, e.Name())
		if dir == l.cropsDir {
			continue
		}
		photos, err := listPhotos(dir)
		if err != nil {
			return nil, err
		}
		if len(photos) > 0 {
			subjects = append(subjects, Subject{Name: e.Name(), PhotoCount: len(photos)})
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

// Resolve maps a requested subject name onto an existing subject directory. An
// exact match wins; otherwise names are compared without diacritics, case,
// dashes or underscores.
func (l *Library) Resolve(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
	}

	subjects, err := l.Subjects()
	if err != nil {
		return "", err
	}
	for _, s := range subjects {
		if s.Name == name {
			return s.Name, nil
		}
	}

	want := facematch.NormalizePersonName(name)
	for _, s := range subjects {
		if facematch.NormalizePersonName(s.Name) == want {
			return s.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
}

// Photos lists a subject's photos. Files with an integer stem come first in
// numeric order, the rest follow by name.
func (l *Library) Photos(subject string) ([]Photo, error) {
	name, err := l.Resolve(subject)
	if err != nil {
		return nil, err
	}
	photos, err := listPhotos(filepath.Join(l.root, name))
	if err != nil {
		return nil, err
	}
	SortPhotos(photos)
	return photos, nil
}

// PhotoPath returns the path of one photo. file must be a plain file name.
func (l *Library) PhotoPath(subject, file string) (string, error) {
	name, err := l.Resolve(subject)
	if err != nil {
		return "", err
	}
	if !validName(file) || !imaging.IsPhoto(file) {
		return "", fmt.Errorf("%w: %q", ErrPhotoNotFound, file)
	}

	path := filepath.Join(l.root, name, file)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s/%s", ErrPhotoNotFound, name, file)
	}
	return path, nil
}

// SortPhotos orders photos by integer stem first, then by name.
func SortPhotos(photos []Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		return LessName(photos[i].Name, photos[j].Name)
	})
}

// LessName orders file names with an integer stem first, numerically, and the
// rest by name.
func LessName(a, b string) bool {
	na, aok := numericStem(a)
	nb, bok := numericStem(b)
	switch {
	case aok && bok:
		if na != nb {
			return na < nb
		}
		return a < b
	case aok != bok:
		return aok
	default:
		return a < b
	}
}

func numericStem(name string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name)))
	return n, err == nil
}

// validName rejects empty names, path separators and dot entries.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func listPhotos(dir string) ([]Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var photos []Photo
	for _, e := range entries {
		if !e.Type().IsRegular() || !imaging.IsPhoto(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		photos = append(photos, Photo{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return photos, nil
}
