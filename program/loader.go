// Package program loads robot documents and compiles them into instruction
// trees.
package program

import (
	"bytes"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/robot/builtins"
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/rs/zerolog/log"
)

// Loader reads robot documents and compiles them. Decoded documents are
// cached by path, but every load compiles a fresh tree, since a robot runs
// only once. A Loader is safe for concurrent use and serves as the robot
// loader of callbot and runbulk expressions.
type Loader struct {
	constructs map[string]vm.Construct
	baseDir    string
	debugger   vm.Debugger

	mu    sync.Mutex
	cache map[string]*Document
	info  *vm.DebugInfo
}

// NewLoader creates a loader with the default constructs.
func NewLoader(options ...Option) *Loader {
	l := &Loader{
		constructs: builtins.Defaults(),
		cache:      map[string]*Document{},
		info:       vm.NewDebugInfo(),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// DebugInfo returns the variable declarations of every robot loaded so far.
func (l *Loader) DebugInfo() *vm.DebugInfo {
	return l.info
}

// Constructs returns the sorted names of the available constructs.
func (l *Loader) Constructs() []string {
	return slices.Sorted(maps.Keys(l.constructs))
}

// Resolve turns a document path into the path the loader reads, resolving
// relative paths against dir or, when dir is empty, the base directory.
func (l *Loader) Resolve(path, dir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if dir == "" {
		dir = l.baseDir
	}
	return filepath.Join(dir, path)
}

// Document reads and decodes the document at a resolved path.
func (l *Loader) Document(path string) (*Document, error) {
	l.mu.Lock()
	doc, ok := l.cache[path]
	l.mu.Unlock()
	if ok {
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errz.Errorf(errz.ErrLoad, "robot %s does not exist", path).WithCause(err)
		}
		return nil, errz.Errorf(errz.ErrLoad, "cannot read robot %s: %s", path, err).WithCause(err)
	}
	doc, err = Decode(bytes.NewReader(data))
	if err != nil {
		return nil, loadError(path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.cache[path]; ok {
		return cached, nil
	}
	l.cache[path] = doc
	return doc, nil
}

// Forget drops a cached document so the next load reads it again.
func (l *Loader) Forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, l.Resolve(path, ""))
}

// ID returns the identifier robots loaded from path get.
func (l *Loader) ID(path string) (vm.RobotID, error) {
	resolved := l.Resolve(path, "")
	doc, err := l.Document(resolved)
	if err != nil {
		return vm.RobotID{}, err
	}
	return robotID(resolved, doc), nil
}

func robotID(path string, doc *Document) vm.RobotID {
	name := doc.Robot
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return vm.RobotID{Path: path, Name: name}
}

// Load compiles the document at path.
func (l *Loader) Load(path string) (*vm.Robot, error) {
	return l.load(l.Resolve(path, ""))
}

// LoadRobot compiles a robot called from another robot. Relative paths are
// resolved against the directory of the caller.
func (l *Loader) LoadRobot(path string, caller vm.RobotID) (*vm.Robot, error) {
	dir := ""
	if caller.Path != "" {
		dir = filepath.Dir(caller.Path)
	}
	return l.load(l.Resolve(path, dir))
}

func (l *Loader) load(path string) (*vm.Robot, error) {
	doc, err := l.Document(path)
	if err != nil {
		return nil, err
	}
	return l.compile(robotID(path, doc), doc)
}

// Parse compiles a document held in memory. Includes are resolved against
// the directory of id.Path, or the base directory when id has no path.
func (l *Loader) Parse(id vm.RobotID, data []byte) (*vm.Robot, error) {
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, loadError(id.String(), err)
	}
	if id.IsZero() {
		id = vm.RobotID{Name: doc.Robot}
		if id.Name == "" {
			id.Name = "main"
		}
	}
	return l.compile(id, doc)
}

func (l *Loader) compile(id vm.RobotID, doc *Document) (*vm.Robot, error) {
	s := &session{loader: l, libs: map[string]*library{}, info: vm.NewDebugInfo()}
	lib, err := s.compile(id, doc)
	if err != nil {
		return nil, err
	}
	l.info.Add(s.info)
	if l.debugger != nil {
		l.debugger.AddDebugInfo(s.info)
	}
	log.Debug().Str("robot", id.String()).Int("variables", len(s.info.Variables())).Msg("robot compiled")
	return lib.robot, nil
}

// Check loads a document and discards the tree.
func (l *Loader) Check(path string) error {
	robot, err := l.Load(path)
	if err != nil {
		return err
	}
	return robot.Close()
}

func loadError(robot string, err error) error {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return errz.Loadf(errz.SourceLocation{Robot: robot, Line: nodeErr.Line}, "%s", nodeErr.Message).WithCause(err)
	}
	return errz.Errorf(errz.ErrLoad, "%s: %s", robot, strings.TrimPrefix(err.Error(), "yaml: ")).WithCause(err)
}
