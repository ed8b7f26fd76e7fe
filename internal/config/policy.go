package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MJE43/promo-games-go/internal/games"
)

// Canvas is the scratch-card coating size in pixels.
type Canvas struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Policy holds the tunable game constants.
type Policy struct {
	Wheel   games.RotationPolicy `yaml:"wheel" json:"wheel"`
	Scratch games.ScratchPolicy  `yaml:"scratch" json:"scratch"`
	Canvas  Canvas               `yaml:"canvas" json:"canvas"`
	// TargetingScript is a JavaScript file defining target(customer,
	// segments). Relative paths resolve against the policy file.
	TargetingScript string `yaml:"targeting_script,omitempty" json:"targeting_script,omitempty"`
}

// DefaultPolicy returns the built-in constants.
func DefaultPolicy() Policy {
	return Policy{
		Wheel:   games.DefaultRotationPolicy(),
		Scratch: games.DefaultScratchPolicy(),
		Canvas:  Canvas{Width: 320, Height: 320},
	}
}

// Validate checks every section.
func (p Policy) Validate() error {
	if err := p.Wheel.Validate(); err != nil {
		return fmt.Errorf("wheel: %w", err)
	}
	if err := p.Scratch.Validate(); err != nil {
		return fmt.Errorf("scratch: %w", err)
	}
	if p.Canvas.Width <= 0 || p.Canvas.Height <= 0 {
		return fmt.Errorf("canvas: size %dx%d must be positive", p.Canvas.Width, p.Canvas.Height)
	}
	return nil
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep
// their defaults; unknown keys are rejected.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}

	p := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}

	if p.TargetingScript != "" && !filepath.IsAbs(p.TargetingScript) {
		p.TargetingScript = filepath.Join(filepath.Dir(path), p.TargetingScript)
	}
	return p, nil
}
