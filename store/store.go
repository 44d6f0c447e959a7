package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/internal/profile"
)

var (
	// ErrNodeExpanded is returned by ExpandNode when the parent already has children.
	ErrNodeExpanded = errors.New("node already expanded")
	// ErrNodeNotFound is returned by ExpandNode and UpdateNode when the node is gone,
	// typically because its conversation was deleted meanwhile.
	ErrNodeNotFound = errors.New("node not found")
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// MarshalSteps encodes a step list for a TEXT column. A nil list stays NULL.
func MarshalSteps(steps []string) (*string, error) {
	if steps == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(steps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal steps")
	}
	s := string(bytes)
	return &s, nil
}

// UnmarshalSteps is the inverse of MarshalSteps.
func UnmarshalSteps(raw *string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	steps := []string{}
	if err := json.Unmarshal([]byte(*raw), &steps); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal steps")
	}
	return steps, nil
}

// MarshalEventData encodes an audit payload for a TEXT column.
func MarshalEventData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal event data")
	}
	return string(bytes), nil
}

// UnmarshalEventData is the inverse of MarshalEventData.
func UnmarshalEventData(raw string) (map[string]any, error) {
	data := map[string]any{}
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event data")
	}
	return data, nil
}
