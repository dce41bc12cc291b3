package model

import "github.com/cqkv/cqwal/fio"

const (
	DataFileName = "cqwal.db"
	LogFileExt   = ".log"
)

// DataFile is the paged data file
type DataFile struct {
	IoManager fio.IOManager
}

func OpenDataFile(ioManager fio.IOManager) *DataFile {
	return &DataFile{
		IoManager: ioManager,
	}
}

func (df *DataFile) Sync() error {
	return df.IoManager.Sync()
}

func (df *DataFile) Close() error {
	return df.IoManager.Close()
}

func (df *DataFile) ReadAt(offset, n int64) ([]byte, error) {
	buf := make([]byte, n)
	_, err := df.IoManager.Read(buf, offset)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAtMost reads up to n bytes at offset, stopping at the file end
func (df *DataFile) ReadAtMost(offset, n int64) ([]byte, error) {
	size, err := df.IoManager.Size()
	if err != nil {
		return nil, err
	}
	if offset >= size {
		return nil, nil
	}
	if offset+n > size {
		n = size - offset
	}
	return df.ReadAt(offset, n)
}

func (df *DataFile) WriteAt(offset int64, data []byte) error {
	_, err := df.IoManager.WriteAt(data, offset)
	return err
}

func (df *DataFile) Size() (int64, error) {
	return df.IoManager.Size()
}

func (df *DataFile) Truncate(n int64) error {
	return df.IoManager.Truncate(n)
}
