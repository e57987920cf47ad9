package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRequiresFileArgument(t *testing.T) {
	_, err := runCommand(t)
	require.Error(t, err)
}

func TestRejectsMissingFile(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "gone.h5"))
	require.Error(t, err)
}

func TestRejectsNonHDF5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not hdf5"), 0o600))
	_, err := runCommand(t, path, "--is-group", "/")
	require.Error(t, err)
}

func TestQueriesAreMutuallyExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.h5")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err := runCommand(t, path, "--is-group", "/", "--is-field", "/")
	require.ErrorContains(t, err, "none of the others can be")
}
