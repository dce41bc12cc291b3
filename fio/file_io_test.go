package fio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFileIO(t *testing.T) *FileIO {
	fileIO, err := NewFileIO(filepath.Join(t.TempDir(), "data"))
	assert.Nil(t, err)
	assert.NotNil(t, fileIO)
	return fileIO
}

func TestFileIO_Write(t *testing.T) {
	fileIO := newTestFileIO(t)

	n, err := fileIO.Write([]byte("hello"))
	assert.Nil(t, err)
	assert.Equal(t, 5, n)

	// writes append
	n, err = fileIO.Write([]byte("world"))
	assert.Nil(t, err)
	assert.Equal(t, 5, n)

	size, err := fileIO.Size()
	assert.Nil(t, err)
	assert.Equal(t, int64(10), size)
}

func TestFileIO_Read(t *testing.T) {
	fileIO := newTestFileIO(t)

	_, err := fileIO.Write([]byte("hello"))
	assert.Nil(t, err)

	buf := make([]byte, 5)
	n, err := fileIO.Read(buf, 0)
	assert.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)
}

func TestFileIO_WriteAt(t *testing.T) {
	fileIO := newTestFileIO(t)

	_, err := fileIO.Write([]byte("hello"))
	assert.Nil(t, err)

	_, err = fileIO.WriteAt([]byte("HE"), 0)
	assert.Nil(t, err)

	buf := make([]byte, 5)
	_, err = fileIO.Read(buf, 0)
	assert.Nil(t, err)
	assert.Equal(t, []byte("HEllo"), buf)
}

func TestFileIO_Truncate(t *testing.T) {
	fileIO := newTestFileIO(t)

	_, err := fileIO.Write([]byte("hello"))
	assert.Nil(t, err)

	assert.Nil(t, fileIO.Truncate(2))
	size, err := fileIO.Size()
	assert.Nil(t, err)
	assert.Equal(t, int64(2), size)
}

func TestOpenFileIO_Missing(t *testing.T) {
	_, err := OpenFileIO(filepath.Join(t.TempDir(), "missing"))
	assert.NotNil(t, err)
}
