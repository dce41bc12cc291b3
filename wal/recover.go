package wal

import (
	"github.com/cqkv/cqwal/logger"
	"github.com/cqkv/cqwal/model"
)

// PagedFile is what recovery needs from the data file
type PagedFile interface {
	ReadAt(offset, n int64) ([]byte, error)
	WriteAt(offset int64, data []byte) error
	Size() (int64, error)
	Truncate(n int64) error
}

type redoImage struct {
	lsn    uint64
	offset uint64
	data   []byte
	skip   bool
}

// committedRange is a byte range a committed after-image covers. Undo
// must not write an older before-image over it: a committed
// transaction may have reused the range after an earlier one aborted.
type committedRange struct {
	lsn        uint64
	start, end uint64
}

// Recover drives redo then undo over the log and brings the data file
// back to the last consistent state. Transactions without a commit are
// rolled back; committed modifications that never reached the data file
// are replayed. The log is cleared afterwards, the lsn keeps counting.
//
// A crash during recovery is harmless: the log is untouched until the
// final clear, and applying the same images twice yields the same
// bytes.
func (l *Log) Recover(pf PagedFile) error {
	committed, flushLSN, err := l.classifyTxns()
	if err != nil {
		return err
	}

	redone, protected, err := l.redo(pf, committed, flushLSN)
	if err != nil {
		return err
	}

	undone, err := l.undo(pf, committed, protected)
	if err != nil {
		return err
	}

	if err = l.Clear(); err != nil {
		return err
	}

	l.opts.logger.Info("log recovery finished",
		logger.Int("redone", redone),
		logger.Int("undone", undone),
		logger.Uint64("nextLSN", l.lsn))
	return nil
}

// classifyTxns is the first pass: walking newest-first, the first
// delimiter seen per transaction is the last one written, so it decides
// the transaction's fate. Transactions with no delimiter at all stay
// out of the committed set and are treated as aborted. The pass also
// records the newest flush lsn per page offset.
func (l *Log) classifyTxns() (map[uint64]bool, map[uint64]uint64, error) {
	committed := make(map[uint64]bool)
	seen := make(map[uint64]bool)
	flushLSN := make(map[uint64]uint64)

	iter := l.NewIterator()
	for {
		entry, _, err := iter.Next()
		if err != nil {
			return nil, nil, err
		}
		if entry.LSN == 0 {
			break
		}

		switch entry.Type() {
		case model.EntryTypeTxnCommit:
			if !seen[entry.TxnID] {
				seen[entry.TxnID] = true
				committed[entry.TxnID] = true
			}
		case model.EntryTypeTxnAbort:
			if !seen[entry.TxnID] {
				seen[entry.TxnID] = true
			}
		case model.EntryTypeFlushPage:
			if _, ok := flushLSN[entry.Offset]; !ok {
				flushLSN[entry.Offset] = entry.LSN
			}
		}
	}

	return committed, flushLSN, nil
}

// redo replays after-images of committed transactions in lsn order,
// skipping writes already covered by a newer page flush. Every
// committed after-image range is reported back, flushed or not, so the
// undo pass knows which bytes belong to a winner.
func (l *Log) redo(pf PagedFile, committed map[uint64]bool, flushLSN map[uint64]uint64) (int, []committedRange, error) {
	var images []redoImage
	var protected []committedRange

	iter := l.NewIterator()
	for {
		entry, payload, err := iter.Next()
		if err != nil {
			return 0, nil, err
		}
		if entry.LSN == 0 {
			break
		}
		if !committed[entry.TxnID] {
			continue
		}

		var after []byte
		switch entry.Type() {
		case model.EntryTypeWrite:
			after = payload
		case model.EntryTypeOverwrite:
			after = payload[entry.DataSize:]
		default:
			continue
		}

		protected = append(protected, committedRange{
			lsn:   entry.LSN,
			start: entry.Offset,
			end:   entry.Offset + uint64(len(after)),
		})

		pageAddr := entry.Offset - entry.Offset%uint64(l.opts.pageSize)
		skip := false
		if lsn, ok := flushLSN[pageAddr]; ok && entry.LSN <= lsn {
			skip = true
		}
		images = append(images, redoImage{lsn: entry.LSN, offset: entry.Offset, data: after, skip: skip})
	}

	// the scan collected newest-first, replay oldest-first
	redone := 0
	for i := len(images) - 1; i >= 0; i-- {
		img := images[i]
		if img.skip {
			continue
		}
		if err := pf.WriteAt(int64(img.offset), img.data); err != nil {
			return 0, nil, err
		}
		redone++
	}
	return redone, protected, nil
}

// undo applies before-images of every transaction that did not commit.
// Images are applied in newest-first order, so the oldest image of a
// region lands last and wins. Byte ranges a committed after-image with
// a higher lsn covers are left alone: the committed transaction wrote
// there after the loser gave the range up, and its bytes must survive.
func (l *Log) undo(pf PagedFile, committed map[uint64]bool, protected []committedRange) (int, error) {
	undone := 0

	iter := l.NewIterator()
	for {
		entry, payload, err := iter.Next()
		if err != nil {
			return 0, err
		}
		if entry.LSN == 0 {
			break
		}
		if committed[entry.TxnID] {
			continue
		}

		var before []byte
		switch entry.Type() {
		case model.EntryTypePrewrite:
			before = payload
		case model.EntryTypeOverwrite:
			before = payload[:entry.DataSize]
		default:
			continue
		}

		start := entry.Offset
		applied := false
		for _, seg := range subtractRanges(start, start+uint64(len(before)), entry.LSN, protected) {
			if err := pf.WriteAt(int64(seg[0]), before[seg[0]-start:seg[1]-start]); err != nil {
				return 0, err
			}
			applied = true
		}
		if applied {
			undone++
		}
	}
	return undone, nil
}

// subtractRanges removes from [start, end) every protected range whose
// lsn is higher than the before-image's own, returning the segments
// that are still safe to restore.
func subtractRanges(start, end, lsn uint64, protected []committedRange) [][2]uint64 {
	if start >= end {
		return nil
	}
	segs := [][2]uint64{{start, end}}

	for _, p := range protected {
		if p.lsn <= lsn || p.start >= p.end {
			continue
		}
		var next [][2]uint64
		for _, seg := range segs {
			if p.end <= seg[0] || p.start >= seg[1] {
				next = append(next, seg)
				continue
			}
			if seg[0] < p.start {
				next = append(next, [2]uint64{seg[0], p.start})
			}
			if p.end < seg[1] {
				next = append(next, [2]uint64{p.end, seg[1]})
			}
		}
		segs = next
		if len(segs) == 0 {
			break
		}
	}
	return segs
}
