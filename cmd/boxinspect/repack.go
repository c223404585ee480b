package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/flattree"
)

var (
	repackDims      int
	repackEventType string
)

// repackCmd copies the box structure and metadata blocks of a container into
// another one, writing the columns with the configured filters.
var repackCmd = &cobra.Command{
	Use:   "repack <src> <dst>",
	Short: "Rewrite the box structure of a container with the configured column filters",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		eventType := eventTypeOr(repackEventType)
		codec := newCodec(eventType)

		src, err := flattree.OpenContainer(args[0], true)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, src.Close()) }()

		ft, err := codec.Restore(src, repackDims, eventType, false)
		if err != nil {
			return err
		}
		blocks := map[int]map[string]interface{}{}
		last := -1
		err = flattree.LoadBlocks(src, func(g *boxfile.Group, index int) error {
			attrs := map[string]interface{}{}
			for _, name := range g.Attrs() {
				v, err := g.Attr(name)
				if err != nil {
					return err
				}
				attrs[name] = v
			}
			blocks[index] = attrs
			last = index
			return nil
		})
		if err != nil {
			return err
		}

		dst, err := flattree.OpenContainer(args[1], false)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, dst.Close()) }()

		if err := codec.Persist(ft, dst); err != nil {
			return err
		}
		created, err := flattree.SaveBlocks(dst, last+1, func(g *boxfile.Group, index int) error {
			for name, v := range blocks[index] {
				if err := g.SetAttr(name, v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := dst.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repacked %d boxes and %d blocks into %s\n", ft.NumBoxes(), created, dst.Path())
		return nil
	},
}

func init() {
	repackCmd.Flags().IntVar(&repackDims, "dims", 0, "number of dimensions of the stored tree")
	repackCmd.Flags().StringVar(&repackEventType, "event-type", "", "event type recorded in the file (default from config)")
	_ = repackCmd.MarkFlagRequired("dims")
	rootCmd.AddCommand(repackCmd)
}
