package h5json

import (
	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// Dataset is a node holding a typed, shaped array of values.
type Dataset struct {
	file    *File
	name    string
	path    string
	address uint64
}

// Name returns the dataset's own name.
func (d *Dataset) Name() string { return d.name }

// Path returns the dataset's full path.
func (d *Dataset) Path() string { return d.path }

// Attributes returns the attributes attached to this dataset.
func (d *Dataset) Attributes() ([]*core.Attribute, error) {
	return objectAttributes(d.file, d.address)
}

// Info returns the dataset's parsed metadata messages.
func (d *Dataset) Info() (*core.DatasetInfo, error) {
	header, err := core.ReadObjectHeader(d.file.osFile, d.address, d.file.sb)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}
	return core.ReadDatasetInfo(header, d.file.sb)
}

// Values materializes the full payload. Numeric storage classes widen to
// float64, strings and compound records keep their own representation.
func (d *Dataset) Values() (*Value, error) {
	header, err := core.ReadObjectHeader(d.file.osFile, d.address, d.file.sb)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}
	info, err := core.ReadDatasetInfo(header, d.file.sb)
	if err != nil {
		return nil, err
	}

	value := &Value{
		Shape:  datasetShape(info.Dataspace),
		Scalar: info.Dataspace.IsScalar(),
	}

	dt := info.Datatype
	switch {
	case dt.Class == core.DatatypeFloat || dt.Class == core.DatatypeFixed:
		value.Class = ValueFloat
		if dt.Class == core.DatatypeFixed {
			value.Class = ValueInt
			if !dt.IsSigned() {
				value.Class = ValueUint
			}
		}
		value.DtypeName = dt.ElementName()
		value.Floats, err = core.ReadFloat64Data(d.file.osFile, info, d.file.sb)
	case dt.IsString() || dt.IsVariableString():
		value.Class = ValueString
		value.Strings, err = core.ReadStringData(d.file.osFile, info, d.file.sb)
	case dt.IsCompound():
		value.Class = ValueCompound
		value.Records, err = core.ReadCompoundData(d.file.osFile, info, d.file.sb)
	default:
		value.Class = ValueOpaque
	}
	if err != nil {
		return nil, utils.WrapError("dataset read failed", err)
	}

	return value, nil
}

// datasetShape returns the dataspace extent. A null dataspace reads as an
// empty one-dimensional extent.
func datasetShape(ds *core.DataspaceMessage) []uint64 {
	if ds.Type == core.DataspaceNull {
		return []uint64{0}
	}
	shape := make([]uint64, len(ds.Dimensions))
	copy(shape, ds.Dimensions)
	return shape
}
