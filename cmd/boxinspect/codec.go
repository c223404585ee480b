package main

import (
	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/config"
	"github.com/robert-malhotra/go-boxtree/flattree"
)

// eventTypeOr returns flag, or the configured event type when flag is empty.
func eventTypeOr(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Codec.EventType
}

// columnOptions maps the container section of the configuration onto the
// options columns are created with.
func columnOptions(c config.Container) []boxfile.ColumnOption {
	opts := []boxfile.ColumnOption{boxfile.WithCompression(c.CompressionLevel)}
	if c.ChunkRows > 0 {
		opts = append(opts, boxfile.WithChunkRows(uint64(c.ChunkRows)))
	}
	if c.Shuffle {
		opts = append(opts, boxfile.WithShuffle())
	}
	if c.Checksum {
		opts = append(opts, boxfile.WithFletcher32())
	}
	return opts
}

func newCodec(eventType string) *flattree.Codec {
	return flattree.New(log,
		flattree.WithEventType(eventType),
		flattree.WithVolumeTolerance(cfg.Codec.VolumeTolerance),
		flattree.WithColumnOptions(columnOptions(cfg.Container)...))
}
