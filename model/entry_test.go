package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryTypeBits(t *testing.T) {
	entry := &Entry{}

	entry.Flags = 0x0ff00000
	entry.SetType(EntryTypeCheckpoint)
	assert.Equal(t, EntryTypeCheckpoint, entry.Type())
	// the lower flag bits survive
	assert.Equal(t, uint32(0x0ff00000), entry.Flags&(1<<entryTypeShift-1))

	entry.SetType(EntryTypeOverwrite)
	assert.Equal(t, EntryTypeOverwrite, entry.Type())
}

func TestEntryPayloadSize(t *testing.T) {
	entry := &Entry{DataSize: 16}

	entry.SetType(EntryTypeWrite)
	assert.Equal(t, uint64(16), entry.PayloadSize())

	entry.SetType(EntryTypePrewrite)
	assert.Equal(t, uint64(16), entry.PayloadSize())

	// overwrite holds both images
	entry.SetType(EntryTypeOverwrite)
	assert.Equal(t, uint64(32), entry.PayloadSize())
}

func TestValidEntryType(t *testing.T) {
	assert.False(t, ValidEntryType(0))
	assert.True(t, ValidEntryType(EntryTypeTxnBegin))
	assert.True(t, ValidEntryType(EntryTypeOverwrite))
	assert.False(t, ValidEntryType(EntryTypeOverwrite+1))
}
