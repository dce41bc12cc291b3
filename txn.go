package cqwal

import (
	"github.com/cqkv/cqwal/model"
)

type undoImage struct {
	offset int64
	data   []byte
}

type pendingUpdate struct {
	key      []byte
	pos      *model.RecordPos
	isDelete bool
}

// Txn is one transaction. Page bytes are modified in the cache as soon
// as Put or Delete is called, with before- and after-images logged
// first; the keydir only learns about the changes on Commit. Abort
// rolls the cached pages back from the recorded before-images.
type Txn struct {
	id       uint64
	db       *DB
	finished bool

	startOffset int64
	undo        []undoImage
	pending     []pendingUpdate
}

// ID yields the transaction id for the log
func (t *Txn) ID() uint64 {
	return t.id
}

// Begin starts a transaction. Transaction ids are issued from a
// monotonically increasing per-database counter starting at 1.
func (db *DB) Begin() (*Txn, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.begin()
}

func (db *DB) begin() (*Txn, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}

	db.txnSeq++
	txn := &Txn{
		id:          db.txnSeq,
		db:          db,
		startOffset: db.writeOffset,
	}

	if db.log != nil {
		if err := db.log.AppendTxnBegin(txn); err != nil {
			return nil, err
		}
	}

	db.activeTxns[txn.id] = txn
	return txn, nil
}

func (t *Txn) Put(key, value []byte) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.put(key, value)
}

func (t *Txn) put(key, value []byte) error {
	if t.finished {
		return ErrTxnFinished
	}
	if t.db.closed {
		return ErrDatabaseClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return t.appendRecord(&model.Record{Key: key, Value: value})
}

// Delete writes a tombstone record. Deleting a missing key is a no-op.
func (t *Txn) Delete(key []byte) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.del(key)
}

func (t *Txn) del(key []byte) error {
	if t.finished {
		return ErrTxnFinished
	}
	if t.db.closed {
		return ErrDatabaseClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if t.db.options.keydir.Get(key) == nil && !t.pendingHolds(key) {
		return nil
	}
	return t.appendRecord(&model.Record{Key: key, IsDelete: true})
}

func (t *Txn) pendingHolds(key []byte) bool {
	for i := len(t.pending) - 1; i >= 0; i-- {
		if string(t.pending[i].key) == string(key) {
			return !t.pending[i].isDelete
		}
	}
	return false
}

// appendRecord places the record in the page cache, logging the old
// and the new bytes of the region around the write.
func (t *Txn) appendRecord(record *model.Record) error {
	db := t.db

	data, size, err := db.options.codec.MarshalRecord(record)
	if err != nil {
		return err
	}
	if size > db.options.pageSize {
		return ErrBigValue
	}

	// records never span a page boundary
	offset := db.writeOffset
	if offset%db.options.pageSize+size > db.options.pageSize {
		offset = offset - offset%db.options.pageSize + db.options.pageSize
	}

	pageAddr := offset - offset%db.options.pageSize
	page, err := db.readPage(pageAddr)
	if err != nil {
		return err
	}
	rel := offset - pageAddr

	oldData := append([]byte(nil), page.Data[rel:rel+size]...)
	if db.log != nil {
		if err = db.log.AppendPrewrite(t, uint64(offset), oldData); err != nil {
			return err
		}
	}

	if db.log != nil {
		if err = db.log.AppendWrite(t, uint64(offset), data); err != nil {
			return err
		}
	}

	copy(page.Data[rel:], data)
	page.Dirty = true

	t.undo = append(t.undo, undoImage{offset: offset, data: oldData})
	t.pending = append(t.pending, pendingUpdate{
		key:      append([]byte(nil), record.Key...),
		pos:      &model.RecordPos{Offset: offset, Size: uint32(size)},
		isDelete: record.IsDelete,
	})

	db.writeOffset = offset + size
	return nil
}

// Commit makes the transaction's changes visible in the keydir. The
// pages themselves reach the data file later, on Flush or Close; the
// log already holds everything needed to redo them.
func (t *Txn) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.commit()
}

func (t *Txn) commit() error {
	if t.finished {
		return ErrTxnFinished
	}
	if t.db.closed {
		return ErrDatabaseClosed
	}
	db := t.db

	if db.log != nil {
		if err := db.log.AppendTxnCommit(t); err != nil {
			return err
		}
	}

	for _, update := range t.pending {
		if update.isDelete {
			db.options.keydir.Delete(update.key)
		} else {
			db.options.keydir.Put(update.key, update.pos)
		}
	}

	t.finish()
	return nil
}

// Abort restores the cached pages from the before-images, newest
// first, and drops the pending keydir updates.
func (t *Txn) Abort() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.abort()
}

func (t *Txn) abort() error {
	if t.finished {
		return ErrTxnFinished
	}
	if t.db.closed {
		return ErrDatabaseClosed
	}
	db := t.db

	if db.log != nil {
		if err := db.log.AppendTxnAbort(t); err != nil {
			return err
		}
	}

	for i := len(t.undo) - 1; i >= 0; i-- {
		img := t.undo[i]
		pageAddr := img.offset - img.offset%db.options.pageSize
		page, err := db.readPage(pageAddr)
		if err != nil {
			return err
		}
		copy(page.Data[img.offset-pageAddr:], img.data)
		page.Dirty = true
	}

	db.writeOffset = t.startOffset
	t.finish()
	return nil
}

func (t *Txn) finish() {
	t.finished = true
	t.undo = nil
	t.pending = nil
	delete(t.db.activeTxns, t.id)
}
