package rowstore

import (
	"encoding/binary"
	"fmt"
)

// recordSize is the width of one entry in a table's .index file.
// 每条偏移记录固定16个字节
const recordSize = 16

const (
	// 记录已被删除（墓碑标记）
	deletedFlag = 0x01
)

// record is the fixed-width entry of the .index file that describes where a
// row lives in the .data file.
//
//	offset int64  | size uint32 | flags uint32
type record struct {
	// 行数据在.data文件中的起始偏移 8字节
	offset int64
	// 行数据的字节数 4字节
	size uint32
	// 标记位，目前只有删除标记 4字节
	flags uint32
}

func (r *record) deleted() bool {
	return r.flags&deletedFlag != 0
}

// write encodes the record into b, which must hold recordSize bytes.
func (r *record) write(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(r.offset))
	binary.LittleEndian.PutUint32(b[8:12], r.size)
	binary.LittleEndian.PutUint32(b[12:16], r.flags)
}

// read decodes the record from b, which must hold recordSize bytes.
func (r *record) read(b []byte) {
	r.offset = int64(binary.LittleEndian.Uint64(b[0:8]))
	r.size = binary.LittleEndian.Uint32(b[8:12])
	r.flags = binary.LittleEndian.Uint32(b[12:16])
}

// Locator identifies a stored row. It is a small fixed-size value so it can be
// kept as the value of an index entry.
// Locator 是索引中保存的定位信息，指向.data文件中的一行
type Locator struct {
	Slot   uint32 // position of the row's record in the .index file
	Size   uint32 // length of the row in bytes
	Offset int64  // position of the row in the .data file
}

// String returns a human readable form used by tree dumps.
func (l Locator) String() string {
	return fmt.Sprintf("%d@%d+%d", l.Slot, l.Offset, l.Size)
}

func (l Locator) matches(r *record) bool {
	return l.Offset == r.offset && l.Size == r.size
}
