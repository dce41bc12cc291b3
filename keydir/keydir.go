package keydir

import "github.com/cqkv/cqwal/model"

// Keydir defined the keydir interface
// you can use some other data structure once you implement this interface
type Keydir interface {
	Put(key []byte, value *model.RecordPos) bool
	Get(key []byte) *model.RecordPos
	Delete(key []byte) bool
	Size() int
	Close() error
	Iterator() Iterator
}

type Iterator interface {
	Rewind()
	Next()
	Valid() bool
	Key() []byte
	Value() *model.RecordPos
	Close()
}
