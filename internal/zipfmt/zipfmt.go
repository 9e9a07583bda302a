// Package zipfmt encodes raw zip records: local file headers, data
// descriptors, and the central directory with its zip64 extensions.
//
// The stdlib archive/zip writer always appends its own central directory
// on Close, which rules it out for chunked archive construction where
// many producers emit local records and a single assembler appends one
// directory over all of them. This package writes the records directly.
package zipfmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/meridianmc/worldpack"
)

const (
	localHeaderSignature   = 0x04034b50
	dataDescriptorSig      = 0x08074b50
	centralHeaderSignature = 0x02014b50
	eocdSignature          = 0x06054b50
	eocd64Signature        = 0x06064b50
	eocd64LocatorSignature = 0x07064b50

	zip64ExtraID = 0x0001

	// Version 4.5, the minimum for zip64 records.
	zipVersion  = 45
	creatorUnix = 3

	// Bit 3: sizes and CRC follow the data in a descriptor.
	// Bit 11: file names are UTF-8.
	flagStreamed = 0x0008
	flagUTF8     = 0x0800

	methodDeflate = 8

	uint16Max = 0xFFFF
	uint32Max = 0xFFFFFFFF
)

// MaxPathLen is the longest file name a zip entry can encode.
const MaxPathLen = uint16Max

// buf is a little-endian append helper for fixed-layout records.
type buf []byte

func (b *buf) u16(v uint16) { *b = binary.LittleEndian.AppendUint16(*b, v) }
func (b *buf) u32(v uint32) { *b = binary.LittleEndian.AppendUint32(*b, v) }
func (b *buf) u64(v uint64) { *b = binary.LittleEndian.AppendUint64(*b, v) }

// WriteLocalHeader writes a streaming local file header for name. Sizes
// and CRC are zero with the streamed flag set; the caller must follow the
// compressed data with a data descriptor. Returns the header length.
func WriteLocalHeader(w io.Writer, name string, mod time.Time) (int, error) {
	if len(name) > MaxPathLen {
		return 0, fmt.Errorf("%w: %d bytes", worldpack.ErrPathTooLong, len(name))
	}
	dosDate, dosTime := dosDateTime(mod)

	b := make(buf, 0, 30+len(name))
	b.u32(localHeaderSignature)
	b.u16(zipVersion)
	b.u16(flagStreamed | flagUTF8)
	b.u16(methodDeflate)
	b.u16(dosTime)
	b.u16(dosDate)
	b.u32(0) // crc, in descriptor
	b.u32(0) // compressed size, in descriptor
	b.u32(0) // uncompressed size, in descriptor
	b.u16(uint16(len(name)))
	b.u16(0) // extra length
	b = append(b, name...)

	return w.Write(b)
}

// WriteDataDescriptor writes the descriptor that trails an entry's
// compressed data. Sizes are 64-bit when either exceeds the 32-bit
// range, matching how readers interpret descriptors of zip64 entries.
func WriteDataDescriptor(w io.Writer, crc uint32, csize, usize uint64) (int, error) {
	b := make(buf, 0, 24)
	b.u32(dataDescriptorSig)
	b.u32(crc)
	if csize >= uint32Max || usize >= uint32Max {
		b.u64(csize)
		b.u64(usize)
	} else {
		b.u32(uint32(csize))
		b.u32(uint32(usize))
	}
	return w.Write(b)
}

// WriteCentralDirectory writes the central directory for records followed
// by the end-of-central-directory markers. cdOffset is the byte offset of
// the directory within the final file, i.e. the total length of all local
// records preceding it. Record header offsets must already be absolute.
func WriteCentralDirectory(w io.Writer, records []worldpack.EntryRecord, cdOffset uint64) error {
	var cdSize uint64
	for i := range records {
		n, err := writeCentralHeader(w, &records[i])
		if err != nil {
			return err
		}
		cdSize += uint64(n)
	}

	entries := uint64(len(records))
	needs64 := entries > uint16Max || cdSize >= uint32Max || cdOffset >= uint32Max
	if !needs64 {
		for i := range records {
			if recordNeeds64(&records[i]) {
				needs64 = true
				break
			}
		}
	}

	if needs64 {
		eocd64Offset := cdOffset + cdSize

		b := make(buf, 0, 76)
		b.u32(eocd64Signature)
		b.u64(44) // remaining record size
		b.u16(zipVersion | creatorUnix<<8)
		b.u16(zipVersion)
		b.u32(0) // disk number
		b.u32(0) // directory start disk
		b.u64(entries)
		b.u64(entries)
		b.u64(cdSize)
		b.u64(cdOffset)

		b.u32(eocd64LocatorSignature)
		b.u32(0) // directory start disk
		b.u64(eocd64Offset)
		b.u32(1) // total disks
		if _, err := w.Write(b); err != nil {
			return err
		}
	}

	b := make(buf, 0, 22)
	b.u32(eocdSignature)
	b.u16(0)
	b.u16(0)
	b.u16(uint16(min(entries, uint16Max)))
	b.u16(uint16(min(entries, uint16Max)))
	b.u32(uint32(min(cdSize, uint32Max)))
	b.u32(uint32(min(cdOffset, uint32Max)))
	b.u16(0) // comment length
	_, err := w.Write(b)
	return err
}

// recordNeeds64 reports whether a record's sizes or offset require zip64
// extra fields.
func recordNeeds64(r *worldpack.EntryRecord) bool {
	return r.UncompressedSize >= uint32Max || r.CompressedSize >= uint32Max || r.HeaderOffset >= uint32Max
}

// writeCentralHeader writes one central directory header, with a zip64
// extra field when any 32-bit field overflows.
func writeCentralHeader(w io.Writer, r *worldpack.EntryRecord) (int, error) {
	if len(r.Name) > MaxPathLen {
		return 0, fmt.Errorf("%w: %d bytes", worldpack.ErrPathTooLong, len(r.Name))
	}
	dosDate, dosTime := dosDateTime(r.Modified)

	// Overflowed fields move to the zip64 extra in a fixed order:
	// uncompressed size, compressed size, header offset.
	var extra buf
	usize32, csize32, offset32 := uint32(uint32Max), uint32(uint32Max), uint32(uint32Max)
	if r.UncompressedSize >= uint32Max {
		extra.u64(r.UncompressedSize)
	} else {
		usize32 = uint32(r.UncompressedSize)
	}
	if r.CompressedSize >= uint32Max {
		extra.u64(r.CompressedSize)
	} else {
		csize32 = uint32(r.CompressedSize)
	}
	if r.HeaderOffset >= uint32Max {
		extra.u64(r.HeaderOffset)
	} else {
		offset32 = uint32(r.HeaderOffset)
	}

	var extraField buf
	if len(extra) > 0 {
		extraField.u16(zip64ExtraID)
		extraField.u16(uint16(len(extra)))
		extraField = append(extraField, extra...)
	}

	b := make(buf, 0, 46+len(r.Name)+len(extraField))
	b.u32(centralHeaderSignature)
	b.u16(zipVersion | creatorUnix<<8)
	b.u16(zipVersion)
	b.u16(flagStreamed | flagUTF8)
	b.u16(methodDeflate)
	b.u16(dosTime)
	b.u16(dosDate)
	b.u32(r.CRC32)
	b.u32(csize32)
	b.u32(usize32)
	b.u16(uint16(len(r.Name)))
	b.u16(uint16(len(extraField)))
	b.u16(0) // comment length
	b.u16(0) // disk number start
	b.u16(0) // internal attributes
	b.u32(unixMode(r.Mode) << 16)
	b.u32(offset32)
	b = append(b, r.Name...)
	b = append(b, extraField...)

	return w.Write(b)
}

// unixMode encodes a file mode as zip external attribute bits.
func unixMode(m fs.FileMode) uint32 {
	const sIFREG = 0o100000
	return sIFREG | uint32(m.Perm())
}

// dosDateTime converts a modification time to MS-DOS date and time
// fields. Times before the DOS epoch clamp to 1980-01-01.
func dosDateTime(t time.Time) (dosDate, dosTime uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		return 1<<5 | 1, 0
	}
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return dosDate, dosTime
}
