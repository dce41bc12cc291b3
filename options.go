package cqwal

import (
	"github.com/cqkv/cqwal/codec"
	"github.com/cqkv/cqwal/fio"
	"github.com/cqkv/cqwal/keydir"
	"github.com/cqkv/cqwal/logger"
	"github.com/cqkv/cqwal/model"
)

type options struct {
	dirPath  string
	pageSize int64

	logThreshold     int
	autoRecovery     bool
	recoveryDisabled bool
	dontClearLog     bool

	ioManagerCreator func(name string) (fio.IOManager, error)
	codec            codec.Codec
	keydir           keydir.Keydir
	logger           *logger.Logger
}

type Option func(*options)

func defaultOptions(dirPath string) *options {
	return &options{
		dirPath:      dirPath,
		pageSize:     model.DefaultPageSize,
		logThreshold: 64,
		ioManagerCreator: func(name string) (fio.IOManager, error) {
			return fio.NewFileIO(name)
		},
		codec:  codec.NewCodecImpl(),
		keydir: keydir.NewBTree(0),
		logger: logger.Default(),
	}
}

func WithPageSize(size int64) Option {
	return func(o *options) {
		o.pageSize = size
	}
}

// WithLogThreshold sets the closed-transaction count per log file that
// makes it eligible for a checkpoint swap, 0 disables rotation
func WithLogThreshold(n int) Option {
	return func(o *options) {
		o.logThreshold = n
	}
}

// WithAutoRecovery makes Open replay a non-empty log instead of
// failing with ErrNeedsRecovery
func WithAutoRecovery() Option {
	return func(o *options) {
		o.autoRecovery = true
	}
}

// WithRecoveryDisabled opens the database without a write-ahead log
func WithRecoveryDisabled() Option {
	return func(o *options) {
		o.recoveryDisabled = true
	}
}

// WithDontClearLog skips the log truncation that marks a clean
// shutdown on Close
func WithDontClearLog() Option {
	return func(o *options) {
		o.dontClearLog = true
	}
}

func WithIOManagerCreator(fn func(name string) (fio.IOManager, error)) Option {
	return func(o *options) {
		o.ioManagerCreator = fn
	}
}

func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

func WithKeydir(kd keydir.Keydir) Option {
	return func(o *options) {
		o.keydir = kd
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
