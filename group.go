package h5json

import (
	"fmt"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/structures"
	"github.com/scigolib/h5json/internal/utils"
)

// maxGroupDepth bounds hierarchy recursion so a cyclic hard-link
// structure cannot loop the loader forever.
const maxGroupDepth = 64

// Object is a node of the file hierarchy: a Group, a Dataset, or an
// Unresolved placeholder for children that could not be loaded.
type Object interface {
	// Name is the node's own name (last path component, "/" for the root).
	Name() string
	// Path is the node's full path from the root.
	Path() string
}

// Unresolved marks a child that exists in its parent's listing but does
// not resolve to a group or dataset: soft and external links, broken
// hard links, and object types the reader does not support.
type Unresolved struct {
	name   string
	path   string
	target string
}

// Name returns the placeholder's name.
func (u *Unresolved) Name() string { return u.name }

// Path returns the placeholder's full path.
func (u *Unresolved) Path() string { return u.path }

// Target returns the link target path for soft links, "" for every other
// placeholder kind. Targets are reported, never followed.
func (u *Unresolved) Target() string { return u.target }

// Group is a container node with ordered children.
type Group struct {
	file     *File
	name     string
	path     string
	address  uint64
	children []Object
}

// Name returns the group's own name.
func (g *Group) Name() string { return g.name }

// Path returns the group's full path.
func (g *Group) Path() string { return g.path }

// Children returns the child objects in file order.
func (g *Group) Children() []Object {
	return g.children
}

// Child looks up a direct child by name.
func (g *Group) Child(name string) (Object, bool) {
	for _, child := range g.children {
		if child.Name() == name {
			return child, true
		}
	}
	return nil, false
}

// Attributes returns the attributes attached to this group.
func (g *Group) Attributes() ([]*core.Attribute, error) {
	return objectAttributes(g.file, g.address)
}

// loadGroup reads the object header at address and populates the group's
// children from whichever link storage the file uses: link messages
// (with or without dense storage) or the old-style symbol table.
func loadGroup(file *File, address uint64, name, path string, depth int) (*Group, error) {
	if depth > maxGroupDepth {
		return nil, fmt.Errorf("group nesting deeper than %d levels", maxGroupDepth)
	}

	header, err := core.ReadObjectHeader(file.osFile, address, file.sb)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}
	if header.Type != core.ObjectTypeGroup {
		return nil, fmt.Errorf("object at 0x%X is not a group", address)
	}

	group := &Group{
		file:    file,
		name:    name,
		path:    path,
		address: address,
	}

	var linkInfo *core.LinkInfoMessage
	sawLinkMessages := false

	for _, msg := range header.Messages {
		switch msg.Type {
		case core.MsgLinkMessage:
			sawLinkMessages = true
			link, err := core.ParseLinkMessage(msg.Data, file.sb)
			if err != nil {
				continue
			}
			group.addLink(link, depth)
		case core.MsgLinkInfo:
			if info, err := core.ParseLinkInfoMessage(msg.Data, file.sb); err == nil {
				linkInfo = info
			}
		}
	}

	if linkInfo != nil && linkInfo.HasDenseStorage() {
		if err := group.loadDenseLinks(linkInfo, depth); err != nil {
			return nil, utils.WrapError("dense link load failed", err)
		}
		return group, nil
	}

	if sawLinkMessages {
		return group, nil
	}

	// Old-style groups keep their entries in a local heap indexed by a v1
	// B-tree, both addressed from a symbol table message.
	for _, msg := range header.Messages {
		if msg.Type != core.MsgSymbolTable {
			continue
		}
		btreeAddr, heapAddr, err := structures.ParseSymbolTableMessage(msg.Data, file.sb)
		if err != nil {
			return nil, utils.WrapError("symbol table message parse failed", err)
		}
		if err := group.loadSymbolTableChildren(btreeAddr, heapAddr, depth); err != nil {
			return nil, utils.WrapError("symbol table children load failed", err)
		}
		break
	}

	return group, nil
}

// addLink turns a parsed link message into a child object. Only hard
// links resolve; soft and external links become placeholders, matching
// how a group listing reports them.
func (g *Group) addLink(link *core.LinkMessage, depth int) {
	childPath := childPath(g.path, link.Name)
	if link.Type != core.LinkTypeHard {
		g.children = append(g.children, &Unresolved{name: link.Name, path: childPath, target: link.Target})
		return
	}
	g.children = append(g.children, loadChild(g.file, link.Address, link.Name, childPath, depth))
}

// loadDenseLinks enumerates link messages stored densely: heap IDs from
// the v2 B-tree name index, each resolving to an encoded link message in
// the fractal heap.
func (g *Group) loadDenseLinks(info *core.LinkInfoMessage, depth int) error {
	heapIDs, err := structures.ReadBTreeV2HeapIDs(g.file.osFile, info.NameBTreeAddress, g.file.sb)
	if err != nil {
		return utils.WrapError("link name index read failed", err)
	}
	if len(heapIDs) == 0 {
		return nil
	}

	heap, err := structures.OpenFractalHeap(g.file.osFile, info.FractalHeapAddress, g.file.sb)
	if err != nil {
		return utils.WrapError("link heap open failed", err)
	}

	for _, id := range heapIDs {
		data, err := heap.ReadObject(id)
		if err != nil {
			return utils.WrapError("link heap object read failed", err)
		}
		link, err := core.ParseLinkMessage(data, g.file.sb)
		if err != nil {
			continue
		}
		g.addLink(link, depth)
	}

	return nil
}

// loadSymbolTableChildren walks the group B-tree, resolves names through
// the local heap and loads each entry. Soft-link entries are detected
// through the scratch-pad cache type and become placeholders.
func (g *Group) loadSymbolTableChildren(btreeAddr, heapAddr uint64, depth int) error {
	heap, err := structures.LoadLocalHeap(g.file.osFile, heapAddr, g.file.sb)
	if err != nil {
		return utils.WrapError("local heap load failed", err)
	}

	entries, err := structures.ReadGroupBTreeEntries(g.file.osFile, btreeAddr, g.file.sb)
	if err != nil {
		return utils.WrapError("group B-tree read failed", err)
	}

	for _, entry := range entries {
		name, err := heap.GetString(entry.LinkNameOffset)
		if err != nil {
			return utils.WrapError("link name read failed", err)
		}
		path := childPath(g.path, name)

		if entry.IsSoftLink() {
			// The scratch-pad offset points at the target path in the same
			// local heap the names come from.
			target, err := heap.GetString(uint64(entry.CachedSoftLinkOffset))
			if err != nil {
				target = ""
			}
			g.children = append(g.children, &Unresolved{name: name, path: path, target: target})
			continue
		}

		g.children = append(g.children, loadChild(g.file, entry.ObjectAddress, name, path, depth))
	}

	return nil
}

// loadChild resolves one child object. Every failure mode collapses to
// an Unresolved placeholder: a group enumeration must not abort because
// a single child is broken, and the direct-query paths report the
// placeholder as an error themselves.
func loadChild(file *File, address uint64, name, path string, depth int) Object {
	if address == 0 || address == core.UndefinedAddress {
		return &Unresolved{name: name, path: path}
	}

	header, err := core.ReadObjectHeader(file.osFile, address, file.sb)
	if err != nil {
		return &Unresolved{name: name, path: path}
	}

	switch header.Type {
	case core.ObjectTypeGroup:
		group, err := loadGroup(file, address, name, path, depth+1)
		if err != nil {
			return &Unresolved{name: name, path: path}
		}
		return group
	case core.ObjectTypeDataset:
		return &Dataset{file: file, name: name, path: path, address: address}
	default:
		return &Unresolved{name: name, path: path}
	}
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
