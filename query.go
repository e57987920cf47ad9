package h5json

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/npfmt"
)

// Preview is a Descriptor augmented with the rendered data payload.
type Preview struct {
	Descriptor *Descriptor
	Data       string
}

// MarshalJSON emits the descriptor's fields plus "data".
func (p *Preview) MarshalJSON() ([]byte, error) {
	d := p.Descriptor
	if d.Type == "dataset" {
		return json.Marshal(struct {
			Type  string `json:"type"`
			Name  string `json:"name"`
			Shape string `json:"shape"`
			Dtype string `json:"dtype"`
			Range string `json:"range"`
			Data  string `json:"data"`
		}{d.Type, d.Name, d.Shape, d.Dtype, d.Range, p.Data})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Data string `json:"data"`
	}{d.Type, d.Name, p.Data})
}

// IsField reports whether the path resolves to a group or a dataset.
// Absence is a false result, never an error.
func (f *File) IsField(path string) bool {
	obj, err := f.Resolve(path)
	if err != nil {
		return false
	}
	switch obj.(type) {
	case *Group, *Dataset:
		return true
	default:
		return false
	}
}

// IsGroup reports whether the path resolves to a group.
func (f *File) IsGroup(path string) bool {
	obj, err := f.Resolve(path)
	if err != nil {
		return false
	}
	_, ok := obj.(*Group)
	return ok
}

// GetFields lists the direct children of the group at path, one
// descriptor per child. Children that cannot be described are reported
// as "other" placeholders rather than failing the listing.
func (f *File) GetFields(path string) (map[string]*Descriptor, error) {
	obj, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	group, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAGroup, path)
	}

	fields := make(map[string]*Descriptor, len(group.Children()))
	for _, child := range group.Children() {
		fields[child.Name()] = describeChild(child)
	}
	return fields, nil
}

// GetAttrs returns the attributes of the group or dataset at path as a
// name to display-string mapping.
func (f *File) GetAttrs(path string) (map[string]string, error) {
	obj, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}

	var attrs []*core.Attribute
	switch node := obj.(type) {
	case *Group:
		attrs, err = node.Attributes()
	case *Dataset:
		attrs, err = node.Attributes()
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAField, path)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		text, err := stringifyAttribute(f, attr)
		if err != nil {
			return nil, err
		}
		out[attr.Name] = text
	}
	return out, nil
}

// PreviewField describes the node at path and attaches a data preview:
// the child name list for a group, the payload rendered with default
// print options for a dataset.
func (f *File) PreviewField(path string) (*Preview, error) {
	obj, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}

	if group, ok := obj.(*Group); ok {
		names := make([]string, 0, len(group.Children()))
		for _, child := range group.Children() {
			names = append(names, child.Name())
		}
		desc, _ := Describe(group)
		return &Preview{Descriptor: desc, Data: npfmt.FormatList(names)}, nil
	}

	dataset, ok := obj.(*Dataset)
	if !ok {
		// Unlike group enumeration, a direct describe of an unresolvable
		// node is an error.
		_, err := Describe(obj)
		return nil, err
	}
	return previewDataset(dataset, npfmt.Defaults())
}

// ReadDataset describes the dataset at path and attaches its full
// payload rendered with unrestricted element count and line width.
func (f *File) ReadDataset(path string) (*Preview, error) {
	obj, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	dataset, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotADataset, path)
	}
	return previewDataset(dataset, npfmt.Unlimited())
}

func previewDataset(d *Dataset, opts npfmt.Options) (*Preview, error) {
	value, err := d.Values()
	if err != nil {
		return nil, err
	}
	return &Preview{
		Descriptor: describeValue(d.Path(), value),
		Data:       renderValue(value, opts),
	}, nil
}

// renderValue stringifies a payload for the data field.
func renderValue(v *Value, opts npfmt.Options) string {
	switch v.Class {
	case ValueFloat:
		if v.Scalar && len(v.Floats) == 1 {
			return npfmt.FormatScalarFloat(v.Floats[0])
		}
		return npfmt.FormatFloats(v.Floats, v.Shape, opts)
	case ValueInt, ValueUint:
		if v.Scalar && len(v.Floats) == 1 {
			return fmt.Sprintf("%d", int64(v.Floats[0]))
		}
		return npfmt.FormatInts(v.Floats, v.Shape, opts)
	case ValueString:
		if v.Scalar && len(v.Strings) == 1 {
			return v.Strings[0]
		}
		return npfmt.FormatStrings(v.Strings, v.Shape, opts)
	case ValueCompound:
		return renderRecords(v.Records)
	default:
		return ""
	}
}

// renderRecords renders compound records as a list of tuples, member
// values in name order.
func renderRecords(records []core.CompoundValue) string {
	tuples := make([]string, len(records))
	for i, record := range records {
		names := make([]string, 0, len(record))
		for name := range record {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, len(names))
		for j, name := range names {
			parts[j] = formatRecordMember(record[name])
		}
		tuples[i] = "(" + strings.Join(parts, ", ") + ")"
	}
	return "[" + strings.Join(tuples, " ") + "]"
}

func formatRecordMember(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	if f, ok := v.(float64); ok {
		return npfmt.FormatScalarFloat(f)
	}
	return fmt.Sprintf("%v", v)
}
