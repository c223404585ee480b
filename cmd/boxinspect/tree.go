package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-boxtree/flattree"
	"github.com/robert-malhotra/go-boxtree/mdbox"
)

var (
	treeDims      int
	treeEventType string
	treeIndexOnly bool
	treeStore     string
	treeLoad      bool
)

// treeCmd restores the box structure stored in a container and summarizes it.
var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Summarize the box structure stored in a container file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		eventType := eventTypeOr(treeEventType)
		codec := newCodec(eventType)

		f, err := flattree.OpenContainer(args[0], true)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, f.Close()) }()

		ft, err := codec.Restore(f, treeDims, eventType, treeIndexOnly)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "boxes:  %d\n", ft.NumBoxes())
		fmt.Fprintf(out, "leaves: %d\n", len(ft.LeafRanges()))
		fmt.Fprintf(out, "events: %d\n", ft.TotalEvents())
		if treeIndexOnly {
			return nil
		}

		opts := flattree.DecodeOptions{StructureOnly: true}
		if treeStore != "" {
			store, serr := openEventStore(treeStore, eventType)
			if serr != nil {
				return serr
			}
			defer func() { err = multierr.Append(err, store.Close()) }()
			opts = flattree.DecodeOptions{FileBacked: true, Store: store}
		}
		nodes, _, err := codec.Decode(ft, opts)
		if err != nil {
			return err
		}
		perDepth := map[int][2]int{}
		for _, n := range nodes {
			c := perDepth[n.Depth()]
			if n.Kind() == mdbox.KindLeaf {
				c[1]++
			} else {
				c[0]++
			}
			perDepth[n.Depth()] = c
		}
		depths := make([]int, 0, len(perDepth))
		for d := range perDepth {
			depths = append(depths, d)
		}
		sort.Ints(depths)
		for _, d := range depths {
			c := perDepth[d]
			fmt.Fprintf(out, "depth %d: %d internal, %d leaves\n", d, c[0], c[1])
		}
		fmt.Fprintf(out, "controller descriptor: %d bytes\n", len(ft.ControllerDescriptor))
		if treeStore == "" || !treeLoad {
			return nil
		}

		if err := mdbox.LoadAll(cmd.Context(), nodes, cfg.Codec.LoadConcurrency); err != nil {
			return err
		}
		var loaded uint64
		for _, l := range mdbox.Leaves(nodes) {
			if l.InMemory() {
				loaded += l.TotalDataSize()
			}
		}
		fmt.Fprintf(out, "loaded events: %d\n", loaded)
		return nil
	},
}

func init() {
	treeCmd.Flags().IntVar(&treeDims, "dims", 0, "number of dimensions of the stored tree")
	treeCmd.Flags().StringVar(&treeEventType, "event-type", "", "event type recorded in the file (default from config)")
	treeCmd.Flags().BoolVar(&treeIndexOnly, "index-only", false, "read only box types and event ranges")
	treeCmd.Flags().StringVar(&treeStore, "store", "", "event store holding the leaf records")
	treeCmd.Flags().BoolVar(&treeLoad, "load", false, "load every leaf's records from --store")
	_ = treeCmd.MarkFlagRequired("dims")
	rootCmd.AddCommand(treeCmd)
}
