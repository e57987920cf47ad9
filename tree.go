package h5json

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// treeStyle holds the per-node-kind colorizers for Tree. Colors are an
// explicit parameter of the rendering, not process-global state.
type treeStyle struct {
	group   *color.Color
	dataset *color.Color
	other   *color.Color
}

func newTreeStyle(colorize bool) *treeStyle {
	s := &treeStyle{
		group:   color.New(color.FgBlue, color.Bold),
		dataset: color.New(color.FgGreen),
		other:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.group, s.dataset, s.other} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Tree writes the hierarchy rooted at path to w, one node per line with
// box-drawing branch prefixes. Datasets carry their dtype and shape.
func (f *File) Tree(w io.Writer, path string, colorize bool) error {
	obj, err := f.Resolve(path)
	if err != nil {
		return err
	}
	group, ok := obj.(*Group)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAGroup, path)
	}

	style := newTreeStyle(colorize)
	if _, err := fmt.Fprintln(w, style.group.Sprint(group.Path())); err != nil {
		return err
	}
	return writeTreeChildren(w, group, "", style)
}

func writeTreeChildren(w io.Writer, group *Group, prefix string, style *treeStyle) error {
	children := group.Children()
	for i, child := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		if _, err := fmt.Fprintln(w, prefix+branch+treeLabel(child, style)); err != nil {
			return err
		}
		if sub, ok := child.(*Group); ok {
			if err := writeTreeChildren(w, sub, prefix+indent, style); err != nil {
				return err
			}
		}
	}
	return nil
}

func treeLabel(obj Object, style *treeStyle) string {
	switch node := obj.(type) {
	case *Group:
		return style.group.Sprint(node.Name())
	case *Dataset:
		desc, err := Describe(node)
		if err != nil {
			return style.dataset.Sprint(node.Name())
		}
		return fmt.Sprintf("%s  %s %s", style.dataset.Sprint(node.Name()), desc.Dtype, desc.Shape)
	default:
		if u, ok := obj.(*Unresolved); ok && u.Target() != "" {
			return style.other.Sprint(u.Name() + " -> " + u.Target())
		}
		return style.other.Sprint(obj.Name())
	}
}
