package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/streamingfast/substreams-poll/manifest"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/descriptorpb"
)

var ErrUnknownModule = errors.New("unknown module")

// Ref points to the message declaring a module's output type and knows how
// to decode values of that type.
type Ref struct {
	TypeName string
	File     string

	descriptor *desc.MessageDescriptor
}

func (r *Ref) Descriptor() *desc.MessageDescriptor {
	return r.descriptor
}

func (r *Ref) String() string {
	return fmt.Sprintf("%s (%s)", r.descriptor.GetFullyQualifiedName(), r.File)
}

// Index maps output type names to the proto files declaring them. It is
// built once and never mutated afterwards.
type Index struct {
	modules *manifest.Modules

	files       map[string]string
	byShortName map[string]*desc.MessageDescriptor
	byFullName  map[string]*desc.MessageDescriptor
}

func NewIndex(modules *manifest.Modules, protoFiles []*descriptorpb.FileDescriptorProto) *Index {
	idx := &Index{
		modules:     modules,
		files:       map[string]string{},
		byShortName: map[string]*desc.MessageDescriptor{},
		byFullName:  map[string]*desc.MessageDescriptor{},
	}

	for _, file := range protoFiles {
		for _, msg := range file.GetMessageType() {
			idx.files[msg.GetName()] = file.GetName()
		}
	}

	fileDescs, err := desc.CreateFileDescriptorsFromSet(&descriptorpb.FileDescriptorSet{File: protoFiles})
	if err != nil {
		// Values of every module will go through the heuristic decoder.
		zlog.Warn("unable to link package proto files, structured decoding disabled", zap.Error(err))
		return idx
	}

	for _, file := range protoFiles {
		fd, found := fileDescs[file.GetName()]
		if !found {
			continue
		}
		for _, md := range fd.GetMessageTypes() {
			idx.byShortName[md.GetName()] = md
			idx.byFullName[md.GetFullyQualifiedName()] = md
		}
	}

	zlog.Debug("schema index built", zap.Int("file_count", len(protoFiles)), zap.Int("message_count", len(idx.byFullName)))
	return idx
}

// ResolveOutputType returns the schema of the module's declared output type,
// or nil when no proto file of the package declares it.
func (i *Index) ResolveOutputType(moduleName string) (*Ref, error) {
	mod, found := i.modules.Get(moduleName)
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, moduleName)
	}

	return i.Lookup(mod.OutputType), nil
}

// Lookup resolves a declared output type, `proto:` prefixed or not. Only the
// trailing type name is significant, a fully qualified match is preferred
// when package names are present.
func (i *Index) Lookup(outputType string) *Ref {
	typeName := outputType
	var md *desc.MessageDescriptor
	if strings.HasPrefix(outputType, "proto:") {
		fullName := strings.TrimPrefix(outputType, "proto:")
		md = i.byFullName[fullName]
		typeName = fullName[strings.LastIndex(fullName, ".")+1:]
	}

	if md == nil {
		md = i.byShortName[typeName]
	}
	if md == nil {
		return nil
	}

	return &Ref{
		TypeName:   typeName,
		File:       md.GetFile().GetName(),
		descriptor: md,
	}
}

// DefiningFile returns the proto file declaring `typeName`, as listed by
// the package, even when the file could not be linked.
func (i *Index) DefiningFile(typeName string) (string, bool) {
	file, found := i.files[typeName]
	return file, found
}
