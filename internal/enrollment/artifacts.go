package enrollment

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/photos"
)

const artifactExt = ".png"

// Artifact is one persisted face crop.
type Artifact struct {
	Subject string `json:"subject"`
	Source  string `json:"source"` // raw photo file name the crop came from
	Path    string `json:"-"`
}

// Artifacts stores intermediate face crops keyed by subject and source file.
type Artifacts interface {
	// Reset removes every crop of subject.
	Reset(subject string) error
	// Put writes the crop of source, replacing an earlier one.
	Put(subject, source string, crop image.Image) (Artifact, error)
	// List returns a subject's crops in source photo order.
	List(subject string) ([]Artifact, error)
	Load(a Artifact) (image.Image, error)
	// Count returns the number of crops across all subjects.
	Count() (int, error)
}

// DirArtifacts keeps crops as PNG files at <root>/<subject>/<source>.png.
type DirArtifacts struct {
	root string
}

// NewDirArtifacts creates a crop store under root.
func NewDirArtifacts(root string) *DirArtifacts {
	return &DirArtifacts{root: root}
}

// Root returns the crops directory.
func (d *DirArtifacts) Root() string {
	return d.root
}

func (d *DirArtifacts) Reset(subject string) error {
	if err := checkComponent(subject); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(d.root, subject)); err != nil {
		return fmt.Errorf("removing crops of %s: %w", subject, err)
	}
	return nil
}

func (d *DirArtifacts) Put(subject, source string, crop image.Image) (Artifact, error) {
	if err := checkComponent(subject); err != nil {
		return Artifact{}, err
	}
	if err := checkComponent(source); err != nil {
		return Artifact{}, err
	}
	a := Artifact{
		Subject: subject,
		Source:  source,
		Path:    filepath.Join(d.root, subject, source+artifactExt),
	}
	if err := imaging.WritePNG(a.Path, crop); err != nil {
		return Artifact{}, fmt.Errorf("writing crop: %w", err)
	}
	return a, nil
}

func (d *DirArtifacts) List(subject string) ([]Artifact, error) {
	if err := checkComponent(subject); err != nil {
		return nil, err
	}
	dir := filepath.Join(d.root, subject)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading crops of %s: %w", subject, err)
	}

	var result []Artifact
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, artifactExt) || strings.HasPrefix(name, ".") {
			continue
		}
		result = append(result, Artifact{
			Subject: subject,
			Source:  strings.TrimSuffix(name, artifactExt),
			Path:    filepath.Join(dir, name),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return photos.LessName(result[i].Source, result[j].Source)
	})
	return result, nil
}

func (d *DirArtifacts) Load(a Artifact) (image.Image, error) {
	return imaging.Open(a.Path)
}

func (d *DirArtifacts) Count() (int, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading crops directory: %w", err)
	}

	total := 0
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		list, err := d.List(e.Name())
		if err != nil {
			return 0, err
		}
		total += len(list)
	}
	return total, nil
}

func checkComponent(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid path component %q", name)
	}
	return nil
}
