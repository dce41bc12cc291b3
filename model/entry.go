package model

// log entry types
const (
	EntryTypeTxnBegin uint32 = iota + 1
	EntryTypeTxnAbort
	EntryTypeTxnCommit
	EntryTypeCheckpoint
	EntryTypeFlushPage
	EntryTypeWrite
	EntryTypePrewrite
	EntryTypeOverwrite
)

const (
	// LogMagic identifies a log file, written at position 0
	LogMagic uint32 = 0x31676c77 // "wlg1"

	// LogFileHeaderSize is the magic plus padding to the entry alignment
	LogFileHeaderSize = 8

	// EntryHeaderSize is the fixed on-disk entry header:
	// lsn(8) + txnID(8) + flags(4) + reserved(4) + offset(8) + dataSize(8)
	EntryHeaderSize = 40

	// EntryAlign pads every record to an 8 byte boundary
	EntryAlign = 8

	// EntryTrailerSize is the trailing length word enabling reverse iteration
	EntryTrailerSize = 8
)

// Entry is one log record header. The entry type lives in the upper
// 4 bits of the flags word.
type Entry struct {
	LSN      uint64
	TxnID    uint64
	Flags    uint32
	Offset   uint64
	DataSize uint64
}

const entryTypeShift = 28

func (e *Entry) Type() uint32 {
	return e.Flags >> entryTypeShift
}

func (e *Entry) SetType(t uint32) {
	e.Flags = (e.Flags & (1<<entryTypeShift - 1)) | t<<entryTypeShift
}

// PayloadSize is the byte count following the header on disk.
// OVERWRITE stores the size of one image in the header but carries
// both the old and the new image in the payload.
func (e *Entry) PayloadSize() uint64 {
	if e.Type() == EntryTypeOverwrite {
		return 2 * e.DataSize
	}
	return e.DataSize
}

func ValidEntryType(t uint32) bool {
	return t >= EntryTypeTxnBegin && t <= EntryTypeOverwrite
}
