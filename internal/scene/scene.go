// Package scene describes voxel volumes as a list of solid shapes in a YAML
// file, so graphs can be rebuilt from a small, reviewable input.
package scene

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/fs"
	"github.com/skyline93/svdag/internal/svdag"
	"github.com/skyline93/svdag/internal/volume"
	"gopkg.in/yaml.v3"
)

// Scene is a volume of side 2^Depth built by applying Shapes in order.
type Scene struct {
	Depth  uint8   `yaml:"depth"`
	Shapes []Shape `yaml:"shapes"`
}

// Shape is one solid. Exactly one of Sphere and Box is set. Fill defaults to
// true; a shape with fill false carves its voxels out of earlier shapes.
type Shape struct {
	Sphere *Sphere `yaml:"sphere,omitempty"`
	Box    *Box    `yaml:"box,omitempty"`
	Fill   *bool   `yaml:"fill,omitempty"`
}

// Sphere covers every voxel whose distance to Center is below Radius.
type Sphere struct {
	Center []int   `yaml:"center,flow"`
	Radius float32 `yaml:"radius"`
}

// Box covers the voxels from Min (inclusive) to Max (exclusive).
type Box struct {
	Min []int `yaml:"min,flow"`
	Max []int `yaml:"max,flow"`
}

// Load reads and validates the scene file at path.
func Load(path string) (*Scene, error) {
	raw, err := fs.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "scene %v", path)
	}
	return s, nil
}

// Parse decodes and validates a scene. Unknown keys are rejected.
func Parse(data []byte) (*Scene, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scene
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the scene as YAML.
func (s *Scene) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

// Validate checks the depth and every shape.
func (s *Scene) Validate() error {
	if s.Depth == 0 || s.Depth > svdag.MaxDepth {
		return errors.Errorf("depth %d out of range 1..%d", s.Depth, svdag.MaxDepth)
	}

	for i, sh := range s.Shapes {
		if err := sh.validate(); err != nil {
			return errors.Wrapf(err, "shape %d", i)
		}
	}
	return nil
}

func (sh Shape) validate() error {
	switch {
	case sh.Sphere != nil && sh.Box != nil:
		return errors.New("both sphere and box set")
	case sh.Sphere != nil:
		if len(sh.Sphere.Center) != 3 {
			return errors.Errorf("sphere center needs 3 coordinates, got %d", len(sh.Sphere.Center))
		}
		if sh.Sphere.Radius <= 0 {
			return errors.Errorf("sphere radius %v must be positive", sh.Sphere.Radius)
		}
	case sh.Box != nil:
		if len(sh.Box.Min) != 3 || len(sh.Box.Max) != 3 {
			return errors.New("box min and max need 3 coordinates")
		}
		for i := range sh.Box.Min {
			if sh.Box.Min[i] >= sh.Box.Max[i] {
				return errors.Errorf("box is empty along axis %d", i)
			}
		}
	default:
		return errors.New("neither sphere nor box set")
	}
	return nil
}

func (sh Shape) fill() bool {
	return sh.Fill == nil || *sh.Fill
}

func position(c []int) volume.Position {
	return volume.Position{X: c[0], Y: c[1], Z: c[2]}
}

// Volume rasterizes the scene. Shapes reaching outside the volume are clipped.
func (s *Scene) Volume() *volume.Volume {
	v := volume.New(s.Depth)
	for _, sh := range s.Shapes {
		switch {
		case sh.Sphere != nil:
			v.FillSphere(position(sh.Sphere.Center), sh.Sphere.Radius, sh.fill())
		case sh.Box != nil:
			v.FillBox(position(sh.Box.Min), position(sh.Box.Max), sh.fill())
		}
	}
	return v
}
