package h5json

import "errors"

// Sentinel errors for the query operations. Callers match them with
// errors.Is; wrapped variants carry the offending path.
var (
	// ErrPathNotFound reports a path that does not resolve inside the file.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotAGroup reports a path that resolves to something other than a group.
	ErrNotAGroup = errors.New("not a group")
	// ErrNotADataset reports a path that resolves to something other than a dataset.
	ErrNotADataset = errors.New("not a dataset")
	// ErrNotAField reports a path that resolves to neither a group nor a dataset.
	ErrNotAField = errors.New("not a field")
	// ErrNotANode reports an object that cannot be described because it is
	// neither a group nor a dataset (a broken or unsupported link target).
	ErrNotANode = errors.New("not a node")
)
