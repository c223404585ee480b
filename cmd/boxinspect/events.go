package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-boxtree/diskstore"
)

var (
	eventsPosition uint64
	eventsCount    uint64
)

// eventsCmd dumps a range of records from an event store, one per line.
var eventsCmd = &cobra.Command{
	Use:   "events <store>",
	Short: "Print records from an event store file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		store, err := openEventStore(args[0], "")
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, store.Close()) }()

		kind, _ := store.RecordKind()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kind:    %s\n", kind)
		fmt.Fprintf(out, "records: %d\n", store.Size())

		count := eventsCount
		if size := store.Size(); eventsPosition >= size {
			count = 0
		} else if eventsPosition+count > size {
			count = size - eventsPosition
		}
		if count == 0 {
			return nil
		}
		recs, err := store.LoadRecords(eventsPosition, count)
		if err != nil {
			return err
		}
		row := make([]string, kind.Fields)
		for i := uint64(0); i < count; i++ {
			for j := range row {
				row[j] = strconv.FormatFloat(recs[int(i)*kind.Fields+j], 'g', -1, 64)
			}
			fmt.Fprintf(out, "%d: %s\n", eventsPosition+i, strings.Join(row, " "))
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsPosition, "position", 0, "first record to print")
	eventsCmd.Flags().Uint64Var(&eventsCount, "count", 10, "number of records to print")
	rootCmd.AddCommand(eventsCmd)
}

// openEventStore opens a store read-only with the configured buffering. It
// fails when the file does not record its event kind, or when eventType is
// set and differs from it.
func openEventStore(path, eventType string) (*diskstore.Store, error) {
	store := diskstore.New(log,
		diskstore.WithWriteBuffer(cfg.Store.WriteBufferBytes),
		diskstore.WithDataChunk(uint64(cfg.Store.DataChunkRecords)))
	if _, err := store.Open(path, diskstore.ReadOnly); err != nil {
		return nil, err
	}
	kind, ok := store.RecordKind()
	switch {
	case !ok:
		err := fmt.Errorf("%s does not record its event kind", path)
		return nil, multierr.Append(err, store.Close())
	case eventType != "" && kind.TypeTag != eventType:
		err := fmt.Errorf("%s holds %s events, want %s", path, kind.TypeTag, eventType)
		return nil, multierr.Append(err, store.Close())
	}
	return store, nil
}
