package wal

import "github.com/cqkv/cqwal/model"

// Iterator walks the log newest-first: it drains the active file, then
// the older one. Once exhausted it keeps returning the sentinel entry
// with lsn 0 and a nil payload. The iterator may only be used while the
// log is quiesced.
type Iterator struct {
	log       *Log
	fileIndex int
	offset    int64
}

func (l *Log) NewIterator() *Iterator {
	return &Iterator{
		log:       l,
		fileIndex: l.currentFd,
		offset:    l.sizes[l.currentFd],
	}
}

// Next returns the next entry going backwards in time. Payload buffers
// are freshly allocated and owned by the caller.
func (it *Iterator) Next() (*model.Entry, []byte, error) {
	for {
		if it.offset > model.LogFileHeaderSize {
			entry, payload, start, err := it.log.readEntryReverse(it.fileIndex, it.offset)
			if err != nil {
				return nil, nil, err
			}
			it.offset = start
			return entry, payload, nil
		}

		// the newer file is drained, move on to the older one
		if it.fileIndex == it.log.currentFd {
			it.fileIndex = 1 - it.fileIndex
			it.offset = it.log.sizes[it.fileIndex]
			continue
		}

		return &model.Entry{}, nil, nil
	}
}
