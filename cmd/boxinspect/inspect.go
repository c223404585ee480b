package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-boxtree/boxfile"
)

// inspectCmd prints the container header and every group and column.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the header, free space and object tree of a container file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := boxfile.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		out := cmd.OutOrStdout()
		info := f.Info()
		fmt.Fprintf(out, "=== %s ===\n", f.Path())
		fmt.Fprintf(out, "version:        %d\n", info.Version)
		fmt.Fprintf(out, "file id:        %s\n", info.FileID)
		fmt.Fprintf(out, "eof:            %d\n", info.EOF)
		fmt.Fprintf(out, "catalog:        %d bytes at %d\n", info.CatalogSize, info.CatalogAddress)
		fmt.Fprintf(out, "free:           %d bytes\n", f.FreeBytes())
		if info.OpenForWrite {
			fmt.Fprintln(out, "warning:        file was not closed cleanly")
		}
		fmt.Fprintln(out)

		return f.Walk(func(path string, obj interface{}) error {
			indent := strings.Repeat("  ", len(boxfile.SplitPath(path)))
			switch o := obj.(type) {
			case *boxfile.Group:
				fmt.Fprintf(out, "%sgroup %s attrs=%v\n", indent, path, o.Attrs())
			case *boxfile.Column:
				fmt.Fprintf(out, "%scolumn %s %s shape=%v filters=%v\n", indent, path, o.Type(), o.Shape(), o.Filters())
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
