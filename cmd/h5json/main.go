// Command h5json answers JSON queries about the contents of an HDF5
// file. It is built as a backend for editor plugins: each invocation
// opens the file, answers exactly one query on stdout and exits.
package main

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scigolib/h5json"
)

type options struct {
	getFields    string
	getAttrs     string
	previewField string
	readDataset  string
	isGroup      string
	isField      string
	tree         string
	fileInfo     bool
	verbose      bool
}

// boolResult is the envelope for the boolean queries.
type boolResult struct {
	Return bool `json:"return"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "h5json: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "h5json [flags] FILE",
		Short:         "JSON queries over HDF5 file contents",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.getFields, "get-fields", "", "list the children of the group at `PATH`")
	flags.StringVar(&opts.getAttrs, "get-attrs", "", "list the attributes of the node at `PATH`")
	flags.StringVar(&opts.previewField, "preview-field", "", "describe the node at `PATH` with a data preview")
	flags.StringVar(&opts.readDataset, "read-dataset", "", "describe the dataset at `PATH` with its full payload")
	flags.StringVar(&opts.isGroup, "is-group", "", "report whether `PATH` is a group")
	flags.StringVar(&opts.isField, "is-field", "", "report whether `PATH` is a group or dataset")
	flags.StringVar(&opts.tree, "tree", "", "print the hierarchy rooted at `PATH`")
	flags.Lookup("tree").NoOptDefVal = "/"
	flags.BoolVar(&opts.fileInfo, "file-info", false, "print superblock version and root child count")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug detail to stderr")

	cmd.MarkFlagsMutuallyExclusive("get-fields", "get-attrs", "preview-field",
		"read-dataset", "is-group", "is-field", "tree", "file-info")

	return cmd
}

func run(cmd *cobra.Command, filename string, opts *options) error {
	logger := zap.NewNop()
	if opts.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		built, err := cfg.Build()
		if err != nil {
			return err
		}
		logger = built
		defer logger.Sync()
	}

	logger.Debug("opening file", zap.String("file", filename))
	file, err := h5json.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	logger.Debug("file open",
		zap.Uint8("superblock_version", file.SuperblockVersion()))

	out := cmd.OutOrStdout()

	switch {
	case opts.getFields != "":
		fields, err := file.GetFields(opts.getFields)
		if err != nil {
			return err
		}
		return writeIndented(out, fields)

	case opts.getAttrs != "":
		attrs, err := file.GetAttrs(opts.getAttrs)
		if err != nil {
			return err
		}
		return writeCompact(out, attrs)

	case opts.previewField != "":
		preview, err := file.PreviewField(opts.previewField)
		if err != nil {
			return err
		}
		return writeCompact(out, preview)

	case opts.readDataset != "":
		preview, err := file.ReadDataset(opts.readDataset)
		if err != nil {
			return err
		}
		return writeCompact(out, preview)

	case opts.isGroup != "":
		return writeCompact(out, boolResult{file.IsGroup(opts.isGroup)})

	case opts.isField != "":
		return writeCompact(out, boolResult{file.IsField(opts.isField)})

	case opts.fileInfo:
		return writeCompact(out, file.Info())

	case cmd.Flags().Changed("tree"):
		colorize := false
		if f, ok := out.(*os.File); ok {
			colorize = isatty.IsTerminal(f.Fd())
		}
		return file.Tree(out, opts.tree, colorize)
	}

	// No query requested: a successful no-op.
	return nil
}

func writeCompact(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeIndented(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
