package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var ErrInvalidPackage = errors.New("invalid package")

type ModuleKind int

const (
	ModuleKindMap ModuleKind = iota
	ModuleKindStore
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleKindMap:
		return "map"
	case ModuleKindStore:
		return "store"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ModuleDescriptor is the immutable view of one module declared by a package.
type ModuleDescriptor struct {
	Name         string
	Kind         ModuleKind
	OutputType   string
	InitialBlock uint64

	// Inputs are prefixed with their source kind, `source:`, `map:` or `store:`.
	Inputs []string
}

func (m *ModuleDescriptor) IsMap() bool {
	return m.Kind == ModuleKindMap
}

// ReadPackage loads a compiled `.spkg` package from disk.
func ReadPackage(path string) (*pbsubstreams.Package, error) {
	if !strings.HasSuffix(path, ".spkg") {
		return nil, fmt.Errorf("%w: %q is not a .spkg file", ErrInvalidPackage, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading package %q: %w", path, err)
	}

	pkg := &pbsubstreams.Package{}
	if err := proto.Unmarshal(content, pkg); err != nil {
		return nil, fmt.Errorf("%w: decoding %q: %s", ErrInvalidPackage, path, err)
	}

	zlog.Debug("package read",
		zap.String("path", path),
		zap.Int("module_count", len(pkg.GetModules().GetModules())),
		zap.Int("proto_file_count", len(pkg.GetProtoFiles())),
	)

	return pkg, nil
}

type Modules struct {
	byName  map[string]*ModuleDescriptor
	ordered []*ModuleDescriptor
	graph   *ModulesGraph
}

// NewModules builds the module descriptor table of a package. Module names
// must be unique.
func NewModules(pkg *pbsubstreams.Package) (*Modules, error) {
	m := &Modules{
		byName: map[string]*ModuleDescriptor{},
	}

	for _, mod := range pkg.GetModules().GetModules() {
		if _, found := m.byName[mod.GetName()]; found {
			return nil, fmt.Errorf("%w: module %q declared twice", ErrInvalidPackage, mod.GetName())
		}

		descriptor := &ModuleDescriptor{
			Name:         mod.GetName(),
			InitialBlock: mod.GetInitialBlock(),
			Inputs:       moduleInputs(mod),
		}

		switch {
		case mod.GetKindMap() != nil:
			descriptor.Kind = ModuleKindMap
			descriptor.OutputType = mod.GetKindMap().GetOutputType()
		case mod.GetKindStore() != nil:
			descriptor.Kind = ModuleKindStore
			descriptor.OutputType = mod.GetKindStore().GetValueType()
		default:
			return nil, fmt.Errorf("%w: module %q has no kind", ErrInvalidPackage, mod.GetName())
		}

		m.byName[descriptor.Name] = descriptor
		m.ordered = append(m.ordered, descriptor)
	}

	graph, err := NewModulesGraph(m.ordered)
	if err != nil {
		return nil, fmt.Errorf("computing modules graph: %w", err)
	}
	m.graph = graph

	return m, nil
}

func (m *Modules) Get(name string) (*ModuleDescriptor, bool) {
	mod, found := m.byName[name]
	return mod, found
}

// All returns the modules in package declaration order.
func (m *Modules) All() []*ModuleDescriptor {
	return m.ordered
}

func (m *Modules) Graph() *ModulesGraph {
	return m.graph
}

// StoreDependencies returns the store modules the given modules depend on,
// directly or not, each listed once, dependencies first.
func (m *Modules) StoreDependencies(names []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, name := range names {
		ancestors, err := m.graph.AncestorsOf(name)
		if err != nil {
			return nil, err
		}

		for _, ancestor := range ancestors {
			if ancestor.Kind != ModuleKindStore || seen[ancestor.Name] {
				continue
			}
			seen[ancestor.Name] = true
			out = append(out, ancestor.Name)
		}
	}
	return out, nil
}

func moduleInputs(mod *pbsubstreams.Module) (out []string) {
	for _, input := range mod.GetInputs() {
		switch {
		case input.GetSource() != nil:
			out = append(out, "source:"+input.GetSource().GetType())
		case input.GetMap() != nil:
			out = append(out, "map:"+input.GetMap().GetModuleName())
		case input.GetStore() != nil:
			out = append(out, "store:"+input.GetStore().GetModuleName())
		}
	}
	return
}
