package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyName — способ геометрической нормализации изображения
type PolicyName string

const (
	// PolicyCenterCrop: короткая сторона приводится к 256, затем центральный кроп 224×224.
	PolicyCenterCrop PolicyName = "center-crop"
	// PolicyPadSquare: длинная сторона приводится к 224, изображение центрируется на белом квадрате.
	PolicyPadSquare PolicyName = "pad-square"
)

// PreprocessPolicy — версионированная политика предобработки. Одна на инсталляцию.
type PreprocessPolicy struct {
	Name    PolicyName
	Version int
}

func DefaultPreprocessPolicy() PreprocessPolicy {
	return PreprocessPolicy{Name: PolicyCenterCrop, Version: 1}
}

func NewPreprocessPolicy(name string, version int) (PreprocessPolicy, error) {
	p := PreprocessPolicy{Name: PolicyName(strings.ToLower(strings.TrimSpace(name))), Version: version}
	if err := p.Validate(); err != nil {
		return PreprocessPolicy{}, err
	}
	return p, nil
}

// ParsePreprocessPolicy разбирает строку вида "center-crop/v1".
func ParsePreprocessPolicy(s string) (PreprocessPolicy, error) {
	name, ver, found := strings.Cut(s, "/v")
	if !found {
		return PreprocessPolicy{}, fmt.Errorf("invalid preprocess policy %q", s)
	}

	version, err := strconv.Atoi(ver)
	if err != nil {
		return PreprocessPolicy{}, fmt.Errorf("invalid preprocess policy version %q: %w", s, err)
	}

	return NewPreprocessPolicy(name, version)
}

func (p PreprocessPolicy) Validate() error {
	switch p.Name {
	case PolicyCenterCrop, PolicyPadSquare:
	default:
		return fmt.Errorf("unknown preprocess policy %q", p.Name)
	}
	if p.Version < 1 {
		return fmt.Errorf("preprocess policy version must be positive, got %d", p.Version)
	}
	return nil
}

func (p PreprocessPolicy) String() string {
	return fmt.Sprintf("%s/v%d", p.Name, p.Version)
}
