package wal

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cqkv/cqwal/fio"
	"github.com/cqkv/cqwal/logger"
	"github.com/cqkv/cqwal/model"
)

// TxnContext yields the id of the transaction an append belongs to
type TxnContext interface {
	ID() uint64
}

// PageContext yields the data-file address of a flushed page
type PageContext interface {
	Address() int64
}

// Log is the write-ahead log. Appends go to one of two physical files;
// on a checkpoint the files swap and the new active file is truncated,
// so the log never holds more than the history written since the
// previous swap. The log is not internally synchronized, the owning handle
// serializes all calls.
type Log struct {
	opts *options

	path      string
	fds       [2]fio.IOManager
	sizes     [2]int64
	currentFd int

	lsn               uint64
	lastCheckpointLSN uint64

	threshold int
	openTxn   [2]int
	closedTxn [2]int
}

// filePath returns the physical path of log file i: <stem> and <stem>.1
func filePath(stem string, i int) string {
	if i == 0 {
		return stem
	}
	return stem + ".1"
}

// Create creates both log files with just their headers. An existing
// pair at the same path is truncated.
func Create(path string, opts ...Option) (*Log, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	l := &Log{
		opts:      o,
		path:      path,
		lsn:       1,
		threshold: o.threshold,
	}

	for i := 0; i < 2; i++ {
		fd, err := o.ioManagerCreator(filePath(path, i))
		if err != nil {
			l.closeFds()
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		l.fds[i] = fd
		if err = l.writeFileHeader(i); err != nil {
			l.closeFds()
			return nil, err
		}
	}

	return l, nil
}

// Open opens an existing pair, verifies both magics and rebuilds the
// in-memory state (active file, next lsn, last checkpoint lsn) by
// scanning both files backwards.
func Open(path string, opts ...Option) (*Log, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	l := &Log{
		opts:      o,
		path:      path,
		lsn:       1,
		threshold: o.threshold,
	}

	for i := 0; i < 2; i++ {
		name := filePath(path, i)
		if _, err := os.Stat(name); err != nil {
			l.closeFds()
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
			}
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		fd, err := o.ioManagerCreator(name)
		if err != nil {
			l.closeFds()
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		l.fds[i] = fd
		if err = l.readFileHeader(i); err != nil {
			l.closeFds()
			return nil, err
		}
	}

	if err := l.recoverState(); err != nil {
		l.closeFds()
		return nil, err
	}

	return l, nil
}

func (l *Log) writeFileHeader(i int) error {
	if err := l.fds[i].Truncate(0); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	hdr := make([]byte, model.LogFileHeaderSize)
	binary.LittleEndian.PutUint32(hdr[:4], model.LogMagic)
	if _, err := l.fds[i].WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	l.sizes[i] = model.LogFileHeaderSize
	return nil
}

func (l *Log) readFileHeader(i int) error {
	size, err := l.fds[i].Size()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if size < model.LogFileHeaderSize {
		return ErrInvalidFileHeader
	}
	hdr := make([]byte, model.LogFileHeaderSize)
	if _, err = l.fds[i].Read(hdr, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if binary.LittleEndian.Uint32(hdr[:4]) != model.LogMagic {
		return ErrInvalidFileHeader
	}
	l.sizes[i] = size
	return nil
}

// recoverState scans both files newest-first. The file holding the
// larger max lsn is the active one; the next lsn continues past the
// largest lsn found anywhere.
func (l *Log) recoverState() error {
	var maxLSN [2]uint64
	var maxCheckpoint uint64

	for i := 0; i < 2; i++ {
		off := l.sizes[i]
		for off > model.LogFileHeaderSize {
			entry, _, start, err := l.readEntryReverse(i, off)
			if err != nil {
				return err
			}
			if entry.LSN > maxLSN[i] {
				maxLSN[i] = entry.LSN
			}
			if entry.Type() == model.EntryTypeCheckpoint && entry.LSN > maxCheckpoint {
				maxCheckpoint = entry.LSN
			}
			off = start
		}
	}

	l.currentFd = 0
	if maxLSN[1] > maxLSN[0] {
		l.currentFd = 1
	}
	if maxLSN[0] > 0 || maxLSN[1] > 0 {
		l.lsn = max(maxLSN[0], maxLSN[1]) + 1
	}
	l.lastCheckpointLSN = maxCheckpoint
	return nil
}

// readEntryReverse reads the entry whose trailing length word ends at
// end and returns the entry, its payload (owned by the caller) and the
// record start offset.
func (l *Log) readEntryReverse(file int, end int64) (*model.Entry, []byte, int64, error) {
	if end < model.LogFileHeaderSize+model.EntryHeaderSize+model.EntryTrailerSize {
		return nil, nil, 0, ErrInvalidFileHeader
	}

	trailer := make([]byte, model.EntryTrailerSize)
	if _, err := l.fds[file].Read(trailer, end-model.EntryTrailerSize); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	total := binary.LittleEndian.Uint64(trailer)
	if total < model.EntryHeaderSize+model.EntryTrailerSize ||
		total > uint64(end-model.LogFileHeaderSize) {
		return nil, nil, 0, ErrInvalidFileHeader
	}

	start := end - int64(total)
	buf := make([]byte, total)
	if _, err := l.fds[file].Read(buf, start); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	entry := &model.Entry{}
	payload, _, err := l.opts.codec.UnmarshalEntry(buf, 0, entry)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrInvalidFileHeader, err)
	}
	return entry, payload, start, nil
}

// appendEntry stamps the next lsn into the entry and writes the whole
// record with a single write call. The lsn advances only on success.
func (l *Log) appendEntry(entry *model.Entry, payload []byte) error {
	entry.LSN = l.lsn

	data, err := l.opts.codec.MarshalEntry(entry, payload)
	if err != nil {
		return err
	}

	cur := l.currentFd
	if _, err = l.fds[cur].WriteAt(data, l.sizes[cur]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	l.sizes[cur] += int64(len(data))
	l.lsn++
	return nil
}

// AppendTxnBegin emits TXN_BEGIN. If the previous transaction left the
// active file quiescent with the threshold reached, a checkpoint is
// written first and the files swap, so this begin lands on the fresh
// file.
func (l *Log) AppendTxnBegin(txn TxnContext) error {
	if err := l.maybeCheckpoint(); err != nil {
		return err
	}

	entry := &model.Entry{TxnID: txn.ID()}
	entry.SetType(model.EntryTypeTxnBegin)
	if err := l.appendEntry(entry, nil); err != nil {
		return err
	}
	l.openTxn[l.currentFd]++
	return nil
}

func (l *Log) AppendTxnAbort(txn TxnContext) error {
	entry := &model.Entry{TxnID: txn.ID()}
	entry.SetType(model.EntryTypeTxnAbort)
	if err := l.appendEntry(entry, nil); err != nil {
		return err
	}
	l.closedTxn[l.currentFd]++
	return nil
}

func (l *Log) AppendTxnCommit(txn TxnContext) error {
	entry := &model.Entry{TxnID: txn.ID()}
	entry.SetType(model.EntryTypeTxnCommit)
	if err := l.appendEntry(entry, nil); err != nil {
		return err
	}
	l.closedTxn[l.currentFd]++
	return nil
}

func (l *Log) AppendCheckpoint() error {
	entry := &model.Entry{}
	entry.SetType(model.EntryTypeCheckpoint)
	if err := l.appendEntry(entry, nil); err != nil {
		return err
	}
	l.lastCheckpointLSN = entry.LSN
	return nil
}

func (l *Log) AppendFlushPage(page PageContext) error {
	entry := &model.Entry{Offset: uint64(page.Address())}
	entry.SetType(model.EntryTypeFlushPage)
	return l.appendEntry(entry, nil)
}

func (l *Log) AppendPrewrite(txn TxnContext, offset uint64, data []byte) error {
	entry := &model.Entry{
		TxnID:    txn.ID(),
		Offset:   offset,
		DataSize: uint64(len(data)),
	}
	entry.SetType(model.EntryTypePrewrite)
	return l.appendEntry(entry, data)
}

func (l *Log) AppendWrite(txn TxnContext, offset uint64, data []byte) error {
	entry := &model.Entry{
		TxnID:    txn.ID(),
		Offset:   offset,
		DataSize: uint64(len(data)),
	}
	entry.SetType(model.EntryTypeWrite)
	return l.appendEntry(entry, data)
}

// AppendOverwrite emits the before and the after image of one region in
// a single entry. The header records the size of one image, the payload
// holds both.
func (l *Log) AppendOverwrite(txn TxnContext, offset uint64, oldData, newData []byte) error {
	if len(oldData) != len(newData) {
		return ErrInvalidParameter
	}
	payload := make([]byte, 0, len(oldData)+len(newData))
	payload = append(payload, oldData...)
	payload = append(payload, newData...)

	entry := &model.Entry{
		TxnID:    txn.ID(),
		Offset:   offset,
		DataSize: uint64(len(oldData)),
	}
	entry.SetType(model.EntryTypeOverwrite)
	return l.appendEntry(entry, payload)
}

// maybeCheckpoint swaps the files once the active file is quiescent and
// has seen at least threshold closed transactions. A threshold of 0
// disables rotation.
func (l *Log) maybeCheckpoint() error {
	cur := l.currentFd
	if l.threshold <= 0 || l.closedTxn[cur] < l.threshold || l.openTxn[cur] != l.closedTxn[cur] {
		return nil
	}
	if l.opts.onCheckpoint != nil {
		if err := l.opts.onCheckpoint(); err != nil {
			return err
		}
	}
	if err := l.AppendCheckpoint(); err != nil {
		return err
	}
	return l.rotate()
}

// rotate makes the other file active and truncates it back to its
// header. The checkpoint on the old file is synced first so it is
// durable before any history is discarded.
func (l *Log) rotate() error {
	old := l.currentFd
	if err := l.fds[old].Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	l.currentFd = 1 - old
	cur := l.currentFd
	if err := l.writeFileHeader(cur); err != nil {
		return err
	}
	l.openTxn[cur] = 0
	l.closedTxn[cur] = 0

	l.opts.logger.Debug("log files rotated",
		logger.Int("active", cur),
		logger.Uint64("checkpointLSN", l.lastCheckpointLSN))
	return nil
}

// IsEmpty reports whether both files hold nothing but their headers
func (l *Log) IsEmpty() bool {
	return l.sizes[0] == model.LogFileHeaderSize && l.sizes[1] == model.LogFileHeaderSize
}

// Clear truncates both files back to their headers. The lsn is left
// untouched so sequence numbers stay monotonic across a clear.
func (l *Log) Clear() error {
	for i := 0; i < 2; i++ {
		if err := l.writeFileHeader(i); err != nil {
			return err
		}
		l.openTxn[i] = 0
		l.closedTxn[i] = 0
	}
	return nil
}

// Close syncs and closes both files. With clear the files are first
// truncated to their headers, which marks a clean shutdown.
func (l *Log) Close(clear bool) error {
	if clear {
		if err := l.Clear(); err != nil {
			return err
		}
	}
	for i := 0; i < 2; i++ {
		if l.fds[i] == nil {
			continue
		}
		if err := l.fds[i].Sync(); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	l.closeFds()
	return nil
}

func (l *Log) closeFds() {
	for i := 0; i < 2; i++ {
		if l.fds[i] != nil {
			_ = l.fds[i].Close()
			l.fds[i] = nil
		}
	}
}

func (l *Log) LSN() uint64 {
	return l.lsn
}

func (l *Log) LastCheckpointLSN() uint64 {
	return l.lastCheckpointLSN
}

func (l *Log) CurrentFile() int {
	return l.currentFd
}

func (l *Log) Threshold() int {
	return l.threshold
}

func (l *Log) SetThreshold(n int) {
	l.threshold = n
}

func (l *Log) OpenTxns(i int) int {
	return l.openTxn[i]
}

func (l *Log) ClosedTxns(i int) int {
	return l.closedTxn[i]
}

func max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
