package wal

import (
	"github.com/cqkv/cqwal/codec"
	"github.com/cqkv/cqwal/fio"
	"github.com/cqkv/cqwal/logger"
	"github.com/cqkv/cqwal/model"
)

// defaultThreshold is the soft per-file closed-transaction count that
// makes the active file eligible for a checkpoint swap
const defaultThreshold = 64

type options struct {
	codec            codec.Codec
	threshold        int
	pageSize         int64
	onCheckpoint     func() error
	ioManagerCreator func(name string) (fio.IOManager, error)
	logger           *logger.Logger
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		codec:     codec.NewCodecImpl(),
		threshold: defaultThreshold,
		pageSize:  model.DefaultPageSize,
		ioManagerCreator: func(name string) (fio.IOManager, error) {
			return fio.NewFileIO(name)
		},
		logger: logger.Default(),
	}
}

func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithThreshold sets the checkpoint threshold, 0 disables rotation
func WithThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}

// WithPageSize tells recovery how to map write offsets to page
// addresses when matching them against flush entries
func WithPageSize(n int64) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithCheckpointHook runs fn right before a checkpoint entry is
// written. The owning engine uses it to flush its dirty pages, so the
// history discarded by the following rotation is covered by the data
// file.
func WithCheckpointHook(fn func() error) Option {
	return func(o *options) {
		o.onCheckpoint = fn
	}
}

func WithIOManagerCreator(fn func(name string) (fio.IOManager, error)) Option {
	return func(o *options) {
		o.ioManagerCreator = fn
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
