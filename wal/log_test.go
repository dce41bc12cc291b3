package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cqkv/cqwal/model"

	"github.com/stretchr/testify/assert"
)

type testTxn uint64

func (t testTxn) ID() uint64 { return uint64(t) }

func newTestLog(t *testing.T, opts ...Option) (*Log, string) {
	stem := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(stem, opts...)
	assert.Nil(t, err)
	assert.NotNil(t, l)
	return l, stem
}

func TestLogCreateClose(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Equal(t, uint64(1), l.LSN())
	assert.True(t, l.IsEmpty())
	assert.Equal(t, 0, l.CurrentFile())

	assert.Nil(t, l.Close(true))
}

func TestLogCreateCloseOpenClose(t *testing.T) {
	l, stem := newTestLog(t)
	assert.True(t, l.IsEmpty())
	assert.Nil(t, l.Close(false))

	l, err := Open(stem)
	assert.Nil(t, err)
	assert.True(t, l.IsEmpty())
	assert.Equal(t, uint64(1), l.LSN())
	assert.Nil(t, l.Close(false))
}

func TestLogCreateBadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "no-such-dir", "test.log"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestLogOpenNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.log"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLogOpenInvalidHeader(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "broken.log")
	assert.Nil(t, os.WriteFile(stem, []byte("notmagic"), 0644))
	assert.Nil(t, os.WriteFile(stem+".1", []byte("notmagic"), 0644))

	_, err := Open(stem)
	assert.ErrorIs(t, err, ErrInvalidFileHeader)
}

func TestLogAppendTxnBegin(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Equal(t, 0, l.OpenTxns(0))
	assert.Equal(t, 0, l.ClosedTxns(0))
	assert.Equal(t, 0, l.OpenTxns(1))
	assert.Equal(t, 0, l.ClosedTxns(1))

	assert.Nil(t, l.AppendTxnBegin(testTxn(1)))

	assert.Equal(t, 1, l.OpenTxns(0))
	assert.Equal(t, 0, l.ClosedTxns(0))
	assert.Equal(t, 0, l.OpenTxns(1))
	assert.Equal(t, 0, l.ClosedTxns(1))

	assert.False(t, l.IsEmpty())
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.Close(false))
}

func TestLogAppendTxnAbort(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Nil(t, l.AppendTxnBegin(testTxn(1)))
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.AppendTxnAbort(testTxn(1)))
	assert.Equal(t, uint64(3), l.LSN())
	assert.Equal(t, 1, l.OpenTxns(0))
	assert.Equal(t, 1, l.ClosedTxns(0))

	assert.Nil(t, l.Close(false))
}

func TestLogAppendTxnCommit(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Nil(t, l.AppendTxnBegin(testTxn(1)))
	assert.Nil(t, l.AppendTxnCommit(testTxn(1)))
	assert.Equal(t, uint64(3), l.LSN())
	assert.Equal(t, 1, l.OpenTxns(0))
	assert.Equal(t, 1, l.ClosedTxns(0))

	assert.Nil(t, l.Close(false))
}

func TestLogAppendCheckpoint(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Nil(t, l.AppendCheckpoint())
	assert.Equal(t, uint64(2), l.LSN())
	assert.Equal(t, uint64(1), l.LastCheckpointLSN())

	assert.Nil(t, l.Close(false))
}

func TestLogAppendFlushPage(t *testing.T) {
	l, _ := newTestLog(t)

	page := model.NewPage(model.DefaultPageSize, model.DefaultPageSize)
	assert.Nil(t, l.AppendFlushPage(page))
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.Close(false))
}

func TestLogAppendPrewrite(t *testing.T) {
	l, _ := newTestLog(t)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	assert.Nil(t, l.AppendPrewrite(testTxn(1), 0, data))
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.Close(false))
}

func TestLogAppendWrite(t *testing.T) {
	l, _ := newTestLog(t)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	assert.Nil(t, l.AppendWrite(testTxn(1), 0, data))
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.Close(false))
}

func TestLogAppendOverwrite(t *testing.T) {
	l, _ := newTestLog(t)

	oldData := make([]byte, 100)
	newData := make([]byte, 100)
	for i := range oldData {
		oldData[i] = byte(i)
		newData[i] = byte(i + 1)
	}
	assert.Nil(t, l.AppendOverwrite(testTxn(1), 0, oldData, newData))
	assert.Equal(t, uint64(2), l.LSN())

	assert.ErrorIs(t, l.AppendOverwrite(testTxn(1), 0, oldData, newData[:50]), ErrInvalidParameter)

	assert.Nil(t, l.Close(false))
}

func TestLogContiguousLSN(t *testing.T) {
	l, _ := newTestLog(t)

	for i := 1; i <= 10; i++ {
		assert.Nil(t, l.AppendTxnBegin(testTxn(i)))
		assert.Equal(t, uint64(i+1), l.LSN())
	}

	assert.Nil(t, l.Close(false))
}

func TestLogClear(t *testing.T) {
	l, _ := newTestLog(t)

	assert.Nil(t, l.AppendTxnBegin(testTxn(1)))
	assert.False(t, l.IsEmpty())
	assert.Equal(t, uint64(2), l.LSN())

	assert.Nil(t, l.Clear())
	assert.True(t, l.IsEmpty())
	// the lsn is not reset by a clear
	assert.Equal(t, uint64(2), l.LSN())

	entry, data, err := l.NewIterator().Next()
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), entry.LSN)
	assert.Nil(t, data)

	assert.Nil(t, l.Close(false))
}

// runTxnPair appends one BEGIN/COMMIT pair for the given id
func runTxnPair(t *testing.T, l *Log, id int) {
	assert.Nil(t, l.AppendTxnBegin(testTxn(id)))
	assert.Nil(t, l.AppendTxnCommit(testTxn(id)))
}

func TestLogRotationAtThreshold(t *testing.T) {
	l, _ := newTestLog(t, WithThreshold(5))
	assert.Equal(t, 5, l.Threshold())
	assert.Equal(t, 0, l.CurrentFile())

	for i := 1; i <= 7; i++ {
		runTxnPair(t, l, i)
	}
	// the active file swapped once
	assert.Equal(t, 1, l.CurrentFile())

	for i := 8; i <= 10; i++ {
		runTxnPair(t, l, i)
		assert.Equal(t, 1, l.CurrentFile())
	}

	runTxnPair(t, l, 11)
	assert.Equal(t, 0, l.CurrentFile())

	assert.Nil(t, l.Close(false))
}

func TestLogThresholdZeroNeverRotates(t *testing.T) {
	l, _ := newTestLog(t, WithThreshold(0))

	for i := 1; i <= 20; i++ {
		runTxnPair(t, l, i)
	}
	assert.Equal(t, 0, l.CurrentFile())

	assert.Nil(t, l.Close(false))
}

func TestLogCheckpointHook(t *testing.T) {
	calls := 0
	l, _ := newTestLog(t, WithThreshold(2), WithCheckpointHook(func() error {
		calls++
		return nil
	}))

	for i := 1; i <= 3; i++ {
		runTxnPair(t, l, i)
	}

	// the hook fired once, before the single rotation
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, l.CurrentFile())

	assert.Nil(t, l.Close(false))
}

func TestLogSetThreshold(t *testing.T) {
	l, _ := newTestLog(t)
	assert.Equal(t, defaultThreshold, l.Threshold())

	l.SetThreshold(5)
	assert.Equal(t, 5, l.Threshold())

	assert.Nil(t, l.Close(false))
}

func TestLogReopenContinuesLSN(t *testing.T) {
	l, stem := newTestLog(t)

	for i := 1; i <= 5; i++ {
		assert.Nil(t, l.AppendTxnBegin(testTxn(i)))
	}
	assert.Nil(t, l.Close(false))

	l, err := Open(stem)
	assert.Nil(t, err)
	assert.Equal(t, uint64(6), l.LSN())
	assert.Nil(t, l.Close(false))
}
