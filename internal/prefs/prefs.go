// Package prefs stores the entry client's display preferences: the names
// shown for the two participants and whether the name panel is expanded.
// They only label fields and never influence split logic.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"condivise/internal/core"
	"condivise/internal/log"
)

const (
	DefaultPerson1Name = "Person 1"
	DefaultPerson2Name = "Person 2"
)

type Preferences struct {
	Person1Name   string `koanf:"person1_name"`
	Person2Name   string `koanf:"person2_name"`
	PanelExpanded bool   `koanf:"panel_expanded"`
}

func Defaults() Preferences {
	return Preferences{
		Person1Name: DefaultPerson1Name,
		Person2Name: DefaultPerson2Name,
	}
}

// Label returns the display name for p. Blank names fall back to the
// defaults.
func (p Preferences) Label(who core.Participant) string {
	if who == core.Person2 {
		return nameOr(p.Person2Name, DefaultPerson2Name)
	}
	return nameOr(p.Person1Name, DefaultPerson1Name)
}

// SetNames applies user input. Blank input restores the default.
func (p *Preferences) SetNames(person1, person2 string) {
	p.Person1Name = nameOr(person1, DefaultPerson1Name)
	p.Person2Name = nameOr(person2, DefaultPerson2Name)
}

func nameOr(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}

// Store loads and saves Preferences in a YAML file.
type Store struct {
	path   string
	logger *log.Logger
}

func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{path: path, logger: logger.WithComponent(log.ComponentPrefs)}
}

// Load reads the file over the defaults. A missing file yields the defaults.
func (s *Store) Load() (Preferences, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Preferences{}, fmt.Errorf("load preference defaults: %w", err)
	}
	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Preferences{}, fmt.Errorf("load preferences %s: %w", s.path, err)
		}
		s.logger.Debug("Preferences file not found, using defaults", "path", s.path)
	}

	var p Preferences
	if err := k.Unmarshal("", &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	p.SetNames(p.Person1Name, p.Person2Name)
	return p, nil
}

// Save writes p atomically.
func (s *Store) Save(p Preferences) error {
	p.SetNames(p.Person1Name, p.Person2Name)

	k := koanf.New(".")
	if err := k.Load(structs.Provider(p, "koanf"), nil); err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	s.logger.Info("Preferences saved", log.FieldOperation, log.OpSave, "path", s.path)
	return nil
}
