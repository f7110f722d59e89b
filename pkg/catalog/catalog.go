// Package catalog holds the closed set of message types that can appear in
// a container row, described as protobuf descriptors.
//
// Type names use the "<package>.<ClassName>" form found in table headers.
// Lookups outside the catalog fail with an unknown_message_type error; there
// is no fallback to a generic message.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

// packageAliases maps legacy package names onto catalog packages.
var packageAliases = map[string]string{
	"L0": "DataModel",
}

// Catalog resolves type names to message descriptors.
type Catalog struct {
	files    *protoregistry.Files
	packages map[string]bool

	tagsOnce sync.Once
	tags     map[string]string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the built-in camera data model catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = New(builtinFiles()...)
	})
	if defaultErr != nil {
		// the built-in descriptors are static; failing here is a programming error
		panic(defaultErr)
	}
	return defaultCatalog
}

// New builds a catalog from file descriptors. Files may be given in any
// order; dependencies are resolved across the whole set.
func New(files ...*descriptorpb.FileDescriptorProto) (*Catalog, error) {
	reg, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{File: files})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid message catalog")
	}

	c := &Catalog{files: reg, packages: make(map[string]bool)}
	reg.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		c.packages[string(fd.Package())] = true
		return true
	})
	return c, nil
}

// Canonical returns the catalog full name for typeName, applying package aliases.
func (c *Catalog) Canonical(typeName string) (string, error) {
	pkg, class, err := ParseTypeName(typeName)
	if err != nil {
		return "", err
	}
	if alias, ok := packageAliases[pkg]; ok {
		pkg = alias
	}
	if !c.packages[pkg] {
		return "", errors.Newf(errors.ErrorTypeUnknownMessageType, "unknown package %q in %q", pkg, typeName)
	}
	return pkg + "." + class, nil
}

// Lookup returns the message descriptor for typeName.
func (c *Catalog) Lookup(typeName string) (protoreflect.MessageDescriptor, error) {
	name, err := c.Canonical(typeName)
	if err != nil {
		return nil, err
	}

	d, err := c.files.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknownMessageType, "unknown message type %q", typeName)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownMessageType, "%q is not a message type", typeName)
	}
	return md, nil
}

// NewMessage returns an empty mutable message of typeName.
func (c *Catalog) NewMessage(typeName string) (*dynamicpb.Message, error) {
	md, err := c.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// MessageTypes lists every message type in the catalog, sorted.
func (c *Catalog) MessageTypes() []string {
	var names []string
	c.files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		collectMessages(fd.Messages(), &names)
		return true
	})
	sort.Strings(names)
	return names
}

func collectMessages(msgs protoreflect.MessageDescriptors, out *[]string) {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		*out = append(*out, string(md.FullName()))
		collectMessages(md.Messages(), out)
	}
}

// IsAnyArray reports whether md is the tagged numeric array message.
func IsAnyArray(md protoreflect.MessageDescriptor) bool {
	return md != nil && md.FullName() == AnyArrayName
}

// ParseTypeName splits "<package>.<ClassName>" at the last dot.
func ParseTypeName(typeName string) (pkg, class string, err error) {
	i := strings.LastIndexByte(typeName, '.')
	if i <= 0 || i == len(typeName)-1 {
		return "", "", errors.Newf(errors.ErrorTypeUnknownMessageType,
			"message type %q is not of the form package.ClassName", typeName)
	}
	return typeName[:i], typeName[i+1:], nil
}
