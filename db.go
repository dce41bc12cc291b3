package cqwal

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/cqkv/cqwal/fio"
	"github.com/cqkv/cqwal/logger"
	"github.com/cqkv/cqwal/model"
	"github.com/cqkv/cqwal/wal"
)

// dbMagic identifies the data file, written at the start of page 0
const dbMagic uint32 = 0x62647163 // "cqdb"

// DB is an embedded key-value store on a paged data file. Every page
// modification goes through the write-ahead log before it touches the
// cached page, so committed changes survive a crash and uncommitted
// ones are rolled back on the next open.
type DB struct {
	mu sync.Mutex

	options  *options
	fileLock *flock.Flock

	dataFile *model.DataFile
	log      *wal.Log

	pages       map[int64]*model.Page
	writeOffset int64

	txnSeq     uint64
	activeTxns map[uint64]*Txn

	closed bool
}

// Open opens the database in dirPath, creating it if needed. A
// non-empty log from a previous crash fails the open with
// ErrNeedsRecovery unless WithAutoRecovery is given, in which case the
// log is replayed first.
func Open(dirPath string, opts ...Option) (*DB, error) {
	o := defaultOptions(dirPath)
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, err
	}

	fileLock := fio.NewFlock(dirPath)
	ok, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDirIsUsing
	}

	db := &DB{
		options:    o,
		fileLock:   fileLock,
		pages:      make(map[int64]*model.Page),
		activeTxns: make(map[uint64]*Txn),
	}

	if err = db.openDataFile(); err != nil {
		db.release()
		return nil, err
	}

	if !o.recoveryDisabled {
		if err = db.openLog(); err != nil {
			db.release()
			return nil, err
		}
	}

	if err = db.loadKeydir(); err != nil {
		db.release()
		return nil, err
	}

	o.logger.Info("database opened",
		logger.String("dir", dirPath),
		logger.Int("keys", o.keydir.Size()))
	return db, nil
}

func (db *DB) openDataFile() error {
	path := filepath.Join(db.options.dirPath, model.DataFileName)
	ioManager, err := db.options.ioManagerCreator(path)
	if err != nil {
		return err
	}
	db.dataFile = model.OpenDataFile(ioManager)

	size, err := db.dataFile.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		// fresh database, page 0 carries the file header
		header := make([]byte, db.options.pageSize)
		binary.LittleEndian.PutUint32(header[:4], dbMagic)
		binary.LittleEndian.PutUint32(header[4:8], uint32(db.options.pageSize))
		return db.dataFile.WriteAt(0, header)
	}

	header, err := db.dataFile.ReadAt(0, 8)
	if err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(header[:4]) != dbMagic {
		return ErrDataFileCorrupted
	}
	pageSize := int64(binary.LittleEndian.Uint32(header[4:8]))
	if pageSize <= 0 {
		return ErrDataFileCorrupted
	}
	db.options.pageSize = pageSize
	return nil
}

// openLog opens or creates the log pair next to the data file and runs
// recovery when the log still holds entries from the previous run.
func (db *DB) openLog() error {
	stem := filepath.Join(db.options.dirPath, model.DataFileName+model.LogFileExt)
	walOpts := []wal.Option{
		wal.WithThreshold(db.options.logThreshold),
		wal.WithPageSize(db.options.pageSize),
		wal.WithCodec(db.options.codec),
		wal.WithIOManagerCreator(db.options.ioManagerCreator),
		wal.WithLogger(db.options.logger),
		// dirty pages must hit the data file before a checkpoint,
		// the rotation afterwards discards the log records covering them
		wal.WithCheckpointHook(func() error {
			return db.flush()
		}),
	}

	l, err := wal.Open(stem, walOpts...)
	if errors.Is(err, wal.ErrFileNotFound) {
		l, err = wal.Create(stem, walOpts...)
	}
	if err != nil {
		return err
	}
	db.log = l

	if l.IsEmpty() {
		return nil
	}
	if !db.options.autoRecovery {
		return wal.ErrNeedsRecovery
	}

	db.options.logger.Info("log is not empty, running recovery")
	if err = l.Recover(db.dataFile); err != nil {
		return err
	}
	return db.dataFile.Sync()
}

// loadKeydir rebuilds the in-memory index by scanning the data pages.
// It also finds the append position for new records: right after the
// last valid record.
func (db *DB) loadKeydir() error {
	size, err := db.dataFile.Size()
	if err != nil {
		return err
	}

	db.writeOffset = db.options.pageSize
	for pageOff := db.options.pageSize; pageOff < size; pageOff += db.options.pageSize {
		page, err := db.readPage(pageOff)
		if err != nil {
			return err
		}

		var pos int64
		for pos < db.options.pageSize {
			record := &model.Record{}
			consumed, err := db.options.codec.UnmarshalRecord(page.Data[pos:], record)
			if err != nil {
				// the rest of the page is free space
				break
			}

			if record.IsDelete {
				db.options.keydir.Delete(record.Key)
			} else {
				key := append([]byte(nil), record.Key...)
				db.options.keydir.Put(key, &model.RecordPos{
					Offset: pageOff + pos,
					Size:   uint32(consumed),
				})
			}
			pos += consumed
			db.writeOffset = pageOff + pos
		}
	}
	return nil
}

// readPage returns the cached page at addr, loading it from the data
// file on a miss. Pages past the file end come back zero-filled.
func (db *DB) readPage(addr int64) (*model.Page, error) {
	if page, ok := db.pages[addr]; ok {
		return page, nil
	}

	page := model.NewPage(addr, db.options.pageSize)
	data, err := db.dataFile.ReadAtMost(addr, db.options.pageSize)
	if err != nil {
		return nil, err
	}
	copy(page.Data, data)
	db.pages[addr] = page
	return page, nil
}

// Put stores the key in its own transaction
func (db *DB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	txn, err := db.begin()
	if err != nil {
		return err
	}
	if err = txn.put(key, value); err != nil {
		_ = txn.abort()
		return err
	}
	return txn.commit()
}

// Delete removes the key in its own transaction
func (db *DB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	txn, err := db.begin()
	if err != nil {
		return err
	}
	if err = txn.del(key); err != nil {
		_ = txn.abort()
		return err
	}
	return txn.commit()
}

func (db *DB) Get(key []byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	pos := db.options.keydir.Get(key)
	if pos == nil {
		return nil, ErrKeyNotFound
	}

	pageAddr := pos.Offset - pos.Offset%db.options.pageSize
	page, err := db.readPage(pageAddr)
	if err != nil {
		return nil, err
	}

	rel := pos.Offset - pageAddr
	record := &model.Record{}
	if _, err = db.options.codec.UnmarshalRecord(page.Data[rel:rel+int64(pos.Size)], record); err != nil {
		return nil, ErrDataFileCorrupted
	}
	if record.IsDelete {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), record.Value...), nil
}

// Flush writes every dirty page to the data file, noting each flush in
// the log so recovery can skip redo for those pages.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	return db.flush()
}

func (db *DB) flush() error {
	flushed := false
	for _, page := range db.pages {
		if !page.Dirty {
			continue
		}
		if err := db.dataFile.WriteAt(page.Offset, page.Data); err != nil {
			return err
		}
		if db.log != nil {
			if err := db.log.AppendFlushPage(page); err != nil {
				return err
			}
		}
		page.Dirty = false
		flushed = true
	}
	if !flushed {
		return nil
	}
	return db.dataFile.Sync()
}

// Close flushes dirty pages and closes the log. Unless the database
// was opened with WithDontClearLog the log is truncated back to its
// headers, which marks the shutdown as clean.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	if err := db.flush(); err != nil {
		return err
	}
	if db.log != nil {
		if err := db.log.Close(!db.options.dontClearLog); err != nil {
			return err
		}
		db.log = nil
	}
	db.closed = true
	db.release()

	db.options.logger.Info("database closed", logger.String("dir", db.options.dirPath))
	return nil
}

func (db *DB) release() {
	if db.dataFile != nil {
		_ = db.dataFile.Close()
		db.dataFile = nil
	}
	if db.log != nil {
		_ = db.log.Close(false)
		db.log = nil
	}
	if db.fileLock != nil {
		_ = db.fileLock.Unlock()
		db.fileLock = nil
	}
}
