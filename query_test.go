package h5json

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	f, err := Open(buildTestFile(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestOpen(t *testing.T) {
	f := openTestFile(t)
	require.Equal(t, uint8(0), f.SuperblockVersion())
	require.Equal(t, &FileInfo{SuperblockVersion: 0, RootChildren: 1}, f.Info())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close()) // idempotent
}

func TestOpenRejectsNonHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.h5")
	require.NoError(t, os.WriteFile(path, []byte("plain text, no signature"), 0o600))
	_, err := Open(path)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	f := openTestFile(t)

	obj, err := f.Resolve("/data/x")
	require.NoError(t, err)
	ds, ok := obj.(*Dataset)
	require.True(t, ok)
	require.Equal(t, "x", ds.Name())
	require.Equal(t, "/data/x", ds.Path())

	// Leading slash is optional; "/" and "" mean the root.
	obj, err = f.Resolve("data/x")
	require.NoError(t, err)
	require.Equal(t, "/data/x", obj.Path())
	obj, err = f.Resolve("/")
	require.NoError(t, err)
	require.Same(t, f.Root(), obj)

	// Soft links resolve to placeholders that report their target.
	obj, err = f.Resolve("/data/soft")
	require.NoError(t, err)
	soft, ok := obj.(*Unresolved)
	require.True(t, ok)
	require.Equal(t, "/data/x", soft.Target())

	_, err = f.Resolve("/nope")
	require.ErrorIs(t, err, ErrPathNotFound)
	_, err = f.Resolve("/data/x/deeper")
	require.ErrorIs(t, err, ErrPathNotFound)

	require.True(t, f.Contains("/data"))
	require.False(t, f.Contains("/data/nope"))
}

func TestIsGroupIsField(t *testing.T) {
	f := openTestFile(t)

	require.True(t, f.IsGroup("/"))
	require.True(t, f.IsGroup("/data"))
	require.False(t, f.IsGroup("/data/x"))
	require.False(t, f.IsGroup("/data/soft"))
	require.False(t, f.IsGroup("/nope"))

	require.True(t, f.IsField("/data"))
	require.True(t, f.IsField("/data/x"))
	require.False(t, f.IsField("/data/soft"))
	require.False(t, f.IsField("/nope"))
}

func TestGetFields(t *testing.T) {
	f := openTestFile(t)

	fields, err := f.GetFields("/data")
	require.NoError(t, err)
	require.Equal(t, map[string]*Descriptor{
		"c": {Type: "dataset", Name: "/data/c", Shape: "(6,)", Dtype: "float64", Range: "10:60"},
		"i": {Type: "dataset", Name: "/data/i", Shape: "(3,)", Dtype: "int32", Range: "-20:300"},
		"s": {Type: "dataset", Name: "/data/s", Shape: "scalar", Dtype: "float64", Range: "2.5"},
		// The soft link is tolerated as a placeholder rather than failing
		// the listing.
		"soft": {Type: "other", Name: "/data/soft"},
		"v":    {Type: "dataset", Name: "/data/v", Shape: "scalar", Dtype: "object", Range: ""},
		"x":    {Type: "dataset", Name: "/data/x", Shape: "(3,)", Dtype: "float64", Range: "1:3"},
	}, fields)

	fields, err = f.GetFields("/")
	require.NoError(t, err)
	require.Equal(t, map[string]*Descriptor{
		"data": {Type: "group", Name: "/data"},
	}, fields)

	_, err = f.GetFields("/nope")
	require.ErrorIs(t, err, ErrPathNotFound)
	_, err = f.GetFields("/data/x")
	require.ErrorIs(t, err, ErrNotAGroup)
}

func TestGetAttrs(t *testing.T) {
	f := openTestFile(t)

	attrs, err := f.GetAttrs("/data/x")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"units": "m", "scale": "0.5"}, attrs)

	attrs, err = f.GetAttrs("/data")
	require.NoError(t, err)
	require.Empty(t, attrs)

	_, err = f.GetAttrs("/data/soft")
	require.ErrorIs(t, err, ErrNotAField)
	_, err = f.GetAttrs("/nope")
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestPreviewField(t *testing.T) {
	f := openTestFile(t)

	preview, err := f.PreviewField("/data/x")
	require.NoError(t, err)
	require.Equal(t, "[1. 2. 3.]", preview.Data)
	require.Equal(t, "(3,)", preview.Descriptor.Shape)

	preview, err = f.PreviewField("/data/s")
	require.NoError(t, err)
	require.Equal(t, "2.5", preview.Data)

	// Chunked storage decodes through the chunk index and filter pipeline.
	preview, err = f.PreviewField("/data/c")
	require.NoError(t, err)
	require.Equal(t, "[10. 20. 30. 40. 50. 60.]", preview.Data)

	// Variable-length strings resolve through the global heap.
	preview, err = f.PreviewField("/data/v")
	require.NoError(t, err)
	require.Equal(t, "['alpha' 'beta']", preview.Data)

	preview, err = f.PreviewField("/data")
	require.NoError(t, err)
	require.Equal(t, "['c', 'i', 's', 'soft', 'v', 'x']", preview.Data)

	data, err := json.Marshal(preview)
	require.NoError(t, err)
	require.Equal(t, `{"type":"group","name":"/data","data":"['c', 'i', 's', 'soft', 'v', 'x']"}`, string(data))

	// A direct preview of the unresolvable node is an error, unlike its
	// appearance in the parent listing.
	_, err = f.PreviewField("/data/soft")
	require.ErrorIs(t, err, ErrNotANode)
	_, err = f.PreviewField("/nope")
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestReadDataset(t *testing.T) {
	f := openTestFile(t)

	preview, err := f.ReadDataset("/data/x")
	require.NoError(t, err)

	data, err := json.Marshal(preview)
	require.NoError(t, err)
	require.Equal(t,
		`{"type":"dataset","name":"/data/x","shape":"(3,)","dtype":"float64","range":"1:3","data":"[1. 2. 3.]"}`,
		string(data))

	preview, err = f.ReadDataset("/data/i")
	require.NoError(t, err)
	require.Equal(t, "[  1 -20 300]", preview.Data)

	preview, err = f.ReadDataset("/data/c")
	require.NoError(t, err)
	require.Equal(t, "[10. 20. 30. 40. 50. 60.]", preview.Data)
	require.Equal(t, "10:60", preview.Descriptor.Range)

	preview, err = f.ReadDataset("/data/v")
	require.NoError(t, err)
	require.Equal(t, "['alpha' 'beta']", preview.Data)
	require.Equal(t, "object", preview.Descriptor.Dtype)

	_, err = f.ReadDataset("/data")
	require.ErrorIs(t, err, ErrNotADataset)
	_, err = f.ReadDataset("/data/soft")
	require.ErrorIs(t, err, ErrNotADataset)
}

func TestDescribeUnresolved(t *testing.T) {
	f := openTestFile(t)

	obj, err := f.Resolve("/data/soft")
	require.NoError(t, err)
	_, err = Describe(obj)
	require.ErrorIs(t, err, ErrNotANode)
	require.Contains(t, err.Error(), "/data/soft")
}

func TestWalk(t *testing.T) {
	f := openTestFile(t)

	var paths []string
	f.Walk(func(path string, obj Object) {
		paths = append(paths, path)
	})
	require.Equal(t, []string{
		"/", "/data", "/data/c", "/data/i", "/data/s", "/data/soft", "/data/v", "/data/x",
	}, paths)
}

func TestTree(t *testing.T) {
	f := openTestFile(t)

	var buf bytes.Buffer
	require.NoError(t, f.Tree(&buf, "/", false))
	require.Equal(t, `/
└── data
    ├── c  float64 (6,)
    ├── i  int32 (3,)
    ├── s  float64 scalar
    ├── soft -> /data/x
    ├── v  object scalar
    └── x  float64 (3,)
`, buf.String())

	buf.Reset()
	require.NoError(t, f.Tree(&buf, "/data", false))
	require.Equal(t, `/data
├── c  float64 (6,)
├── i  int32 (3,)
├── s  float64 scalar
├── soft -> /data/x
├── v  object scalar
└── x  float64 (3,)
`, buf.String())

	require.ErrorIs(t, f.Tree(&buf, "/data/x", false), ErrNotAGroup)
}
