package keydir

import (
	"testing"

	"github.com/cqkv/cqwal/model"

	"github.com/stretchr/testify/assert"
)

func TestBTree_Put(t *testing.T) {
	bt := NewBTree(32)

	res := bt.Put([]byte("a"), &model.RecordPos{
		Offset: 3,
		Size:   2,
	})
	assert.True(t, res)

	res = bt.Put([]byte("a"), &model.RecordPos{
		Offset: 5,
		Size:   2,
	})
	assert.True(t, res)
	assert.Equal(t, 1, bt.Size())
}

func TestBTree_Get(t *testing.T) {
	bt := NewBTree(32)

	res := bt.Put([]byte("a"), &model.RecordPos{
		Offset: 3,
		Size:   2,
	})
	assert.True(t, res)

	pos := bt.Get([]byte("a"))
	assert.NotNil(t, pos)
	assert.Equal(t, int64(3), pos.Offset)
	assert.Equal(t, uint32(2), pos.Size)

	pos = bt.Get([]byte("missing"))
	assert.Nil(t, pos)
}

func TestBTree_Delete(t *testing.T) {
	bt := NewBTree(32)

	res := bt.Put([]byte("a"), &model.RecordPos{Offset: 3, Size: 2})
	assert.True(t, res)

	assert.True(t, bt.Delete([]byte("a")))
	assert.Nil(t, bt.Get([]byte("a")))
	assert.False(t, bt.Delete([]byte("a")))
}

func TestBTree_Iterator(t *testing.T) {
	bt := NewBTree(32)

	bt.Put([]byte("b"), &model.RecordPos{Offset: 2})
	bt.Put([]byte("a"), &model.RecordPos{Offset: 1})
	bt.Put([]byte("c"), &model.RecordPos{Offset: 3})

	iter := bt.Iterator()
	var keys []string
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	iter.Rewind()
	assert.True(t, iter.Valid())
	assert.Equal(t, []byte("a"), iter.Key())
	assert.Equal(t, int64(1), iter.Value().Offset)
	iter.Close()
}
