package classify

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"albumrun/internal/logging"
)

var (
	// ErrInvalidInput reports a root that is missing or not a directory.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClassification reports a filesystem traversal failure.
	ErrClassification = errors.New("classification failed")
)

// DefaultDiscPattern recognizes CD1, Disc 2, "Disc 3 - Bonus", disk04 and similar names.
const DefaultDiscPattern = `(?i)^(cd|disc|disk)\s*\d+`

// Kind describes how a work unit was derived.
type Kind string

const (
	KindSingle    Kind = "single"
	KindMultiDisc Kind = "multi-disc-group"
)

// WorkUnit is one album folder (or multi-disc album parent) to process.
type WorkUnit struct {
	// ID is the slash-separated path relative to the scanned root, or the
	// root's base name when the root itself is the unit.
	ID   string
	Path string
	Kind Kind
}

// Options tune classification.
type Options struct {
	// Ignore holds doublestar patterns matched against slash paths relative to the root.
	Ignore []string
	// DiscPattern overrides DefaultDiscPattern when non-empty.
	DiscPattern string
	Logger      *slog.Logger
}

// Classifier turns a directory tree into an ordered list of work units.
type Classifier struct {
	ignore []string
	disc   *regexp.Regexp
	logger *slog.Logger
}

// New validates options and builds a Classifier.
func New(opts Options) (*Classifier, error) {
	pattern := strings.TrimSpace(opts.DiscPattern)
	if pattern == "" {
		pattern = DefaultDiscPattern
	}
	disc, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("disc pattern %q: %w", pattern, err)
	}
	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("ignore pattern %q is invalid", p)
		}
		ignore = append(ignore, p)
	}
	return &Classifier{
		ignore: ignore,
		disc:   disc,
		logger: logging.NewComponentLogger(opts.Logger, "classifier"),
	}, nil
}

// Classify scans root with default options.
func Classify(root string) ([]WorkUnit, error) {
	c, err := New(Options{})
	if err != nil {
		return nil, err
	}
	return c.Classify(root)
}

// IsDiscFolder reports whether name looks like a disc folder of a multi-disc release.
func (c *Classifier) IsDiscFolder(name string) bool {
	return c.disc.MatchString(name)
}

// Classify scans root and returns its work units sorted by path. Either the
// complete list or an error is returned, never both.
func (c *Classifier) Classify(root string) ([]WorkUnit, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: root directory is required", ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrInvalidInput, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidInput, abs)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrClassification, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, abs)
	}

	s := &scan{c: c, root: abs, children: map[string][]string{}, emitted: map[string]bool{}}
	units, err := s.run()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(units, func(a, b WorkUnit) int { return strings.Compare(a.Path, b.Path) })
	return units, nil
}

type scan struct {
	c        *Classifier
	root     string
	children map[string][]string
	emitted  map[string]bool
	units    []WorkUnit
}

func (s *scan) run() ([]WorkUnit, error) {
	top, err := s.childDirs(".")
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		s.emit(".", KindSingle, "root has no album subfolders")
		return s.units, nil
	}
	if s.discCount(top) >= 2 {
		s.emit(".", KindMultiDisc, "root holds disc folders")
		return s.units, nil
	}
	if err := s.walk(".", top); err != nil {
		return nil, err
	}
	return s.units, nil
}

func (s *scan) walk(rel string, names []string) error {
	for _, name := range names {
		childRel := path.Join(rel, name)
		grand, err := s.childDirs(childRel)
		if err != nil {
			return err
		}
		if len(grand) > 0 {
			if err := s.walk(childRel, grand); err != nil {
				return err
			}
			continue
		}
		if err := s.leaf(childRel, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *scan) leaf(rel, name string) error {
	if !s.c.IsDiscFolder(name) {
		s.emit(rel, KindSingle, "leaf folder")
		return nil
	}
	parent := path.Dir(rel)
	if s.emitted[parent] {
		return nil
	}
	siblings, err := s.childDirs(parent)
	if err != nil {
		return err
	}
	if s.discCount(siblings) >= 2 {
		s.emit(parent, KindMultiDisc, "parent holds disc folders")
		return nil
	}
	s.emit(rel, KindSingle, "lone disc folder")
	return nil
}

func (s *scan) emit(rel string, kind Kind, reason string) {
	s.emitted[rel] = true
	abs := s.root
	id := filepath.Base(s.root)
	if rel != "." {
		abs = filepath.Join(s.root, filepath.FromSlash(rel))
		id = rel
	}
	s.units = append(s.units, WorkUnit{ID: id, Path: abs, Kind: kind})
	if logging.Enabled(s.c.logger, slog.LevelDebug) {
		attrs := logging.DecisionAttrs("unit_kind", string(kind), reason)
		attrs = append(attrs, logging.String(logging.FieldUnitID, id))
		s.c.logger.Debug("folder classified", logging.Args(attrs...)...)
	}
}

func (s *scan) discCount(names []string) int {
	n := 0
	for _, name := range names {
		if s.c.IsDiscFolder(name) {
			n++
		}
	}
	return n
}

// childDirs lists visible, non-ignored subdirectory names of rel in sorted order.
func (s *scan) childDirs(rel string) ([]string, error) {
	if cached, ok := s.children[rel]; ok {
		return cached, nil
	}
	dir := s.root
	if rel != "." {
		dir = filepath.Join(s.root, filepath.FromSlash(rel))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrClassification, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if s.ignored(path.Join(rel, name)) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	s.children[rel] = names
	return names, nil
}

func (s *scan) ignored(rel string) bool {
	for _, pattern := range s.c.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
