package codec

import (
	"encoding/binary"

	"github.com/cqkv/cqwal/model"
	"github.com/cqkv/cqwal/utils"
)

type CodecImpl struct{}

func NewCodecImpl() *CodecImpl {
	return &CodecImpl{}
}

/*
log entry layout, all integers little-endian:
	lsn(8) | txnID(8) | flags(4) | reserved(4) | offset(8) | dataSize(8) | payload | pad | total(8)
	- flags carries the entry type in its upper 4 bits
	- pad grows the record to a multiple of 8 bytes
	- the trailing total equals the whole record size, so a reader at any
	  record end can step backwards without a forward scan
*/

// MinEntrySize is the smallest encoded entry: header plus trailing word
const MinEntrySize = model.EntryHeaderSize + model.EntryTrailerSize

func entryTotalSize(payloadLen int) int64 {
	padded := (payloadLen + model.EntryAlign - 1) &^ (model.EntryAlign - 1)
	return int64(model.EntryHeaderSize + padded + model.EntryTrailerSize)
}

func (cl *CodecImpl) MarshalEntry(entry *model.Entry, payload []byte) ([]byte, error) {
	if !model.ValidEntryType(entry.Type()) {
		return nil, ErrUnknownEntryType
	}
	if uint64(len(payload)) != entry.PayloadSize() {
		return nil, ErrInvalidParameter
	}

	total := entryTotalSize(len(payload))
	data := make([]byte, total)

	binary.LittleEndian.PutUint64(data[:8], entry.LSN)
	binary.LittleEndian.PutUint64(data[8:16], entry.TxnID)
	binary.LittleEndian.PutUint32(data[16:20], entry.Flags)
	binary.LittleEndian.PutUint64(data[24:32], entry.Offset)
	binary.LittleEndian.PutUint64(data[32:40], entry.DataSize)

	copy(data[model.EntryHeaderSize:], payload)
	binary.LittleEndian.PutUint64(data[total-model.EntryTrailerSize:], uint64(total))

	return data, nil
}

func (cl *CodecImpl) UnmarshalEntry(data []byte, pos int64, entry *model.Entry) ([]byte, int64, error) {
	if pos < 0 || pos+model.EntryHeaderSize > int64(len(data)) {
		return nil, 0, ErrCorruptedEntry
	}

	entry.LSN = binary.LittleEndian.Uint64(data[pos : pos+8])
	entry.TxnID = binary.LittleEndian.Uint64(data[pos+8 : pos+16])
	entry.Flags = binary.LittleEndian.Uint32(data[pos+16 : pos+20])
	entry.Offset = binary.LittleEndian.Uint64(data[pos+24 : pos+32])
	entry.DataSize = binary.LittleEndian.Uint64(data[pos+32 : pos+40])

	if !model.ValidEntryType(entry.Type()) {
		return nil, 0, ErrUnknownEntryType
	}

	payloadLen := int64(entry.PayloadSize())
	total := entryTotalSize(int(payloadLen))
	if pos+total > int64(len(data)) {
		return nil, 0, ErrCorruptedEntry
	}

	trailer := binary.LittleEndian.Uint64(data[pos+total-model.EntryTrailerSize : pos+total])
	if trailer != uint64(total) {
		return nil, 0, ErrCorruptedEntry
	}

	var payload []byte
	if payloadLen > 0 {
		payload = data[pos+model.EntryHeaderSize : pos+model.EntryHeaderSize+payloadLen]
	}
	return payload, pos + total, nil
}

func (cl *CodecImpl) UnmarshalEntryReverse(data []byte, end int64, entry *model.Entry) ([]byte, int64, error) {
	if end < MinEntrySize || end > int64(len(data)) {
		return nil, 0, ErrCorruptedEntry
	}

	total := binary.LittleEndian.Uint64(data[end-model.EntryTrailerSize : end])
	if total < MinEntrySize || total > uint64(end) {
		return nil, 0, ErrCorruptedEntry
	}

	start := end - int64(total)
	payload, next, err := cl.UnmarshalEntry(data, start, entry)
	if err != nil {
		return nil, 0, err
	}
	if next != end {
		return nil, 0, ErrCorruptedEntry
	}
	return payload, start, nil
}

/*
page record layout:
	crc(4) | isDelete(1) | keySize(varint) | valueSize(varint) | key | value
	crc covers everything after the crc field
*/

func (cl *CodecImpl) MarshalRecord(record *model.Record) ([]byte, int64, error) {
	if len(record.Key) == 0 {
		return nil, 0, ErrInvalidParameter
	}

	data := make([]byte, model.MaxRecordHeaderSize, model.MaxRecordHeaderSize+len(record.Key)+len(record.Value))

	// isDelete
	if record.IsDelete {
		data[4] = 1
	}

	// key size and value size
	idx := 5
	idx += binary.PutVarint(data[idx:], int64(len(record.Key)))
	idx += binary.PutVarint(data[idx:], int64(len(record.Value)))

	data = append(data[:idx], record.Key...)
	data = append(data, record.Value...)

	record.Crc = utils.GenerateCrc(data[4:])
	binary.LittleEndian.PutUint32(data[:4], record.Crc)

	return data, int64(len(data)), nil
}

func (cl *CodecImpl) UnmarshalRecord(data []byte, record *model.Record) (int64, error) {
	if len(data) < 7 {
		return 0, ErrNoRecord
	}

	crc := binary.LittleEndian.Uint32(data[:4])

	var isDelete bool
	switch data[4] {
	case 1:
		isDelete = true
	}

	idx := 5
	keySize, n := binary.Varint(data[idx:])
	if n <= 0 || keySize <= 0 {
		return 0, ErrNoRecord
	}
	idx += n

	valueSize, n := binary.Varint(data[idx:])
	if n <= 0 || valueSize < 0 {
		return 0, ErrNoRecord
	}
	idx += n

	total := int64(idx) + keySize + valueSize
	if total > int64(len(data)) {
		return 0, ErrCorruptedRecord
	}

	if !utils.CheckCrc(crc, data[4:total]) {
		return 0, ErrCorruptedRecord
	}

	record.Crc = crc
	record.IsDelete = isDelete
	record.Key = data[int64(idx) : int64(idx)+keySize]
	record.Value = data[int64(idx)+keySize : total]

	return total, nil
}
