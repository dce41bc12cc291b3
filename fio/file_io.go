package fio

import "os"

// FileIO is the default implement for IOManager
type FileIO struct {
	fd *os.File
}

func NewFileIO(file string) (*FileIO, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &FileIO{fd: fd}, nil
}

// OpenFileIO opens an existing file, it does not create one
func OpenFileIO(file string) (*FileIO, error) {
	fd, err := os.OpenFile(file, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &FileIO{fd: fd}, nil
}

func (fio *FileIO) Read(buf []byte, offset int64) (int, error) {
	return fio.fd.ReadAt(buf, offset)
}

// Write appends data at the end of the file
func (fio *FileIO) Write(data []byte) (int, error) {
	stat, err := fio.fd.Stat()
	if err != nil {
		return 0, err
	}
	return fio.fd.WriteAt(data, stat.Size())
}

func (fio *FileIO) WriteAt(data []byte, offset int64) (int, error) {
	return fio.fd.WriteAt(data, offset)
}

func (fio *FileIO) Size() (int64, error) {
	stat, err := fio.fd.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (fio *FileIO) Truncate(size int64) error {
	return fio.fd.Truncate(size)
}

func (fio *FileIO) Sync() error {
	return fio.fd.Sync()
}

func (fio *FileIO) Close() error {
	return fio.fd.Close()
}
