// Package idgen produces client-side correlation ids (tempIds) for
// optimistic sends.
package idgen

import (
	"fmt"
	"strings"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() (string, error)
	Name() string
}

// Strategy names accepted by New.
const (
	StrategyUUID   = "uuid"
	StrategyULID   = "ulid"
	StrategyKSUID  = "ksuid"
	StrategyNanoID = "nanoid"
	StrategyCUID2  = "cuid2"
)

// New returns the generator for strategy. An empty strategy selects uuid.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyUUID:
		return NewUUIDGenerator(), nil
	case StrategyULID:
		return NewULIDGenerator(), nil
	case StrategyKSUID:
		return NewKSUIDGenerator(), nil
	case StrategyNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case StrategyCUID2:
		return NewCUID2Generator(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}

// Prefixed wraps a generator so every id carries prefix. The console uses
// "tmp_" so optimistic ids never collide with server message ids.
type Prefixed struct {
	Generator
	Prefix string
}

func (p Prefixed) Generate() (string, error) {
	id, err := p.Generator.Generate()
	if err != nil {
		return "", err
	}
	return p.Prefix + id, nil
}
