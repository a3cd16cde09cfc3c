package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Container format constants
const (
	// ContainerMagic identifies a chunk container file ("CHK1").
	ContainerMagic uint32 = 0x43484B31
	// ContainerVersion is the current format version.
	ContainerVersion uint16 = 1

	headerSize = 64
)

var (
	// ErrInvalidMagic is returned when a container does not start with ContainerMagic.
	ErrInvalidMagic = errors.New("frame: invalid container magic")
	// ErrInvalidVersion is returned when a container version is unsupported.
	ErrInvalidVersion = errors.New("frame: unsupported container version")
	// ErrCorrupted is returned when a checksum mismatch or truncation is detected.
	ErrCorrupted = errors.New("frame: corrupted container")
)

// Container header layout (64 bytes, little-endian):
//
//	Offset  Size  Field
//	0       4     Magic
//	4       2     Version
//	6       2     Flags (reserved)
//	8       1     Compression
//	9       3     Padding
//	12      4     NumCols
//	16      8     NumRows
//	24      32    Reserved
//	56      4     Header CRC32 (IEEE, bytes [0:56])
//	60      4     Padding
//
// The body carries one entry per column, in frame order:
//
//	NameLen  uint16
//	Name     NameLen bytes
//	Type     uint8
//	Validity uint8 (1 if a validity bitmap block follows the data block)
//	Data     block
//	Validity block (present only when Validity == 1)
//
// Blocks are framed by compressBlock. The body is followed by a uint32 CRC32
// over every body byte as written.

// WriteFrame writes f to w in the container format and returns the number of
// bytes written.
func WriteFrame(w io.Writer, f *Frame, compression CompressionType) (int64, error) {
	if f == nil {
		return 0, errors.New("frame: cannot write nil frame")
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:], ContainerMagic)
	binary.LittleEndian.PutUint16(header[4:], ContainerVersion)
	header[8] = uint8(compression)
	binary.LittleEndian.PutUint32(header[12:], uint32(f.NumCols()))
	binary.LittleEndian.PutUint64(header[16:], uint64(f.NumRows()))
	binary.LittleEndian.PutUint32(header[56:], crc32.ChecksumIEEE(header[:56]))

	written := int64(0)
	n, err := w.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("frame: write container header: %w", err)
	}

	crc := crc32.NewIEEE()
	body := io.MultiWriter(w, crc)

	for i := 0; i < f.NumCols(); i++ {
		n, err := writeColumn(body, f.ColumnAt(i), compression)
		written += n
		if err != nil {
			return written, err
		}
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	n, err = w.Write(trailer[:])
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("frame: write container checksum: %w", err)
	}
	return written, nil
}

func writeColumn(w io.Writer, c *Column, compression CompressionType) (int64, error) {
	if len(c.Name) > math.MaxUint16 {
		return 0, fmt.Errorf("frame: column name %q too long", c.Name)
	}

	meta := make([]byte, 0, 2+len(c.Name)+2)
	meta = binary.LittleEndian.AppendUint16(meta, uint16(len(c.Name)))
	meta = append(meta, c.Name...)
	meta = append(meta, uint8(c.Type))
	if c.Valid != nil {
		meta = append(meta, 1)
	} else {
		meta = append(meta, 0)
	}

	written := int64(0)
	n, err := w.Write(meta)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("frame: write column %q header: %w", c.Name, err)
	}

	data, err := encodeValues(c)
	if err != nil {
		return written, err
	}
	block, err := compressBlock(data, compression)
	if err != nil {
		return written, fmt.Errorf("frame: compress column %q: %w", c.Name, err)
	}
	n, err = w.Write(block)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("frame: write column %q data: %w", c.Name, err)
	}

	if c.Valid != nil {
		block, err = compressBlock(encodeBitmap(c.Valid), compression)
		if err != nil {
			return written, fmt.Errorf("frame: compress column %q validity: %w", c.Name, err)
		}
		n, err = w.Write(block)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("frame: write column %q validity: %w", c.Name, err)
		}
	}
	return written, nil
}

// ReadFrame reads one container from r and returns the decoded frame along
// with the number of bytes consumed.
func ReadFrame(r io.Reader) (*Frame, int64, error) {
	var header [headerSize]byte
	read := int64(0)
	n, err := io.ReadFull(r, header[:])
	read += int64(n)
	if err != nil {
		return nil, read, fmt.Errorf("frame: read container header: %w", corruptedEOF(err))
	}

	if binary.LittleEndian.Uint32(header[0:]) != ContainerMagic {
		return nil, read, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(header[4:]); v != ContainerVersion {
		return nil, read, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	if sum := binary.LittleEndian.Uint32(header[56:]); sum != crc32.ChecksumIEEE(header[:56]) {
		return nil, read, fmt.Errorf("%w: header checksum mismatch", ErrCorrupted)
	}

	compression := CompressionType(header[8])
	numCols := binary.LittleEndian.Uint32(header[12:])
	numRows := binary.LittleEndian.Uint64(header[16:])
	if numRows > math.MaxInt32 {
		return nil, read, fmt.Errorf("%w: implausible row count %d", ErrCorrupted, numRows)
	}

	crc := crc32.NewIEEE()
	body := &countingReader{r: io.TeeReader(r, crc)}

	f := New(int(numRows))
	for i := uint32(0); i < numCols; i++ {
		c, err := readColumn(body, compression, int(numRows))
		if err != nil {
			return nil, read + body.n, err
		}
		if err := f.Add(c); err != nil {
			return nil, read + body.n, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	read += body.n

	var trailer [4]byte
	want := crc.Sum32()
	n, err = io.ReadFull(r, trailer[:])
	read += int64(n)
	if err != nil {
		return nil, read, fmt.Errorf("frame: read container checksum: %w", corruptedEOF(err))
	}
	if got := binary.LittleEndian.Uint32(trailer[:]); got != want {
		return nil, read, fmt.Errorf("%w: body checksum mismatch", ErrCorrupted)
	}
	return f, read, nil
}

func readColumn(r io.Reader, compression CompressionType, rows int) (Column, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Column{}, fmt.Errorf("frame: read column header: %w", corruptedEOF(err))
	}
	name := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, name); err != nil {
		return Column{}, fmt.Errorf("frame: read column name: %w", corruptedEOF(err))
	}
	var metaBuf [2]byte
	if _, err := io.ReadFull(r, metaBuf[:]); err != nil {
		return Column{}, fmt.Errorf("frame: read column %q header: %w", name, corruptedEOF(err))
	}
	typ := Type(metaBuf[0])
	hasValidity := metaBuf[1]

	data, err := readBlock(r, compression)
	if err != nil {
		return Column{}, fmt.Errorf("frame: read column %q data: %w", name, corruptedBlock(err))
	}
	c, err := decodeValues(string(name), typ, rows, data)
	if err != nil {
		return Column{}, err
	}

	if hasValidity == 1 {
		data, err = readBlock(r, compression)
		if err != nil {
			return Column{}, fmt.Errorf("frame: read column %q validity: %w", name, corruptedBlock(err))
		}
		c.Valid, err = decodeBitmap(data, rows)
		if err != nil {
			return Column{}, fmt.Errorf("frame: column %q: %w", name, err)
		}
	}
	return c, nil
}

func encodeValues(c *Column) ([]byte, error) {
	switch c.Type {
	case TypeUint16:
		buf := make([]byte, 0, 2*len(c.U16))
		for _, v := range c.U16 {
			buf = binary.LittleEndian.AppendUint16(buf, v)
		}
		return buf, nil
	case TypeInt32:
		buf := make([]byte, 0, 4*len(c.I32))
		for _, v := range c.I32 {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
		return buf, nil
	case TypeFloat64:
		buf := make([]byte, 0, 8*len(c.F64))
		for _, v := range c.F64 {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		return buf, nil
	case TypeUint32:
		buf := make([]byte, 0, 4*len(c.U32))
		for _, v := range c.U32 {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
		return buf, nil
	case TypeString:
		size := 4
		for _, s := range c.Str {
			size += 4 + len(s)
		}
		buf := make([]byte, 0, size)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Str)))
		for _, s := range c.Str {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("frame: cannot encode column %q of type %s", c.Name, c.Type)
	}
}

func decodeValues(name string, typ Type, rows int, data []byte) (Column, error) {
	c := Column{Name: name, Type: typ}
	switch typ {
	case TypeUint16:
		if len(data) != 2*rows {
			return Column{}, fmt.Errorf("%w: column %q payload size %d, want %d", ErrCorrupted, name, len(data), 2*rows)
		}
		c.U16 = make([]uint16, rows)
		for i := range c.U16 {
			c.U16[i] = binary.LittleEndian.Uint16(data[2*i:])
		}
	case TypeInt32:
		if len(data) != 4*rows {
			return Column{}, fmt.Errorf("%w: column %q payload size %d, want %d", ErrCorrupted, name, len(data), 4*rows)
		}
		c.I32 = make([]int32, rows)
		for i := range c.I32 {
			c.I32[i] = int32(binary.LittleEndian.Uint32(data[4*i:]))
		}
	case TypeFloat64:
		if len(data) != 8*rows {
			return Column{}, fmt.Errorf("%w: column %q payload size %d, want %d", ErrCorrupted, name, len(data), 8*rows)
		}
		c.F64 = make([]float64, rows)
		for i := range c.F64 {
			c.F64[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
	case TypeUint32:
		if len(data) != 4*rows {
			return Column{}, fmt.Errorf("%w: column %q payload size %d, want %d", ErrCorrupted, name, len(data), 4*rows)
		}
		c.U32 = make([]uint32, rows)
		for i := range c.U32 {
			c.U32[i] = binary.LittleEndian.Uint32(data[4*i:])
		}
	case TypeString:
		if len(data) < 4 {
			return Column{}, fmt.Errorf("%w: column %q string payload truncated", ErrCorrupted, name)
		}
		count := binary.LittleEndian.Uint32(data)
		if int(count) != rows {
			return Column{}, fmt.Errorf("%w: column %q string count %d, want %d", ErrCorrupted, name, count, rows)
		}
		c.Str = make([]string, rows)
		off := 4
		for i := range c.Str {
			if len(data) < off+4 {
				return Column{}, fmt.Errorf("%w: column %q string payload truncated", ErrCorrupted, name)
			}
			n := int(binary.LittleEndian.Uint32(data[off:]))
			off += 4
			if len(data) < off+n {
				return Column{}, fmt.Errorf("%w: column %q string payload truncated", ErrCorrupted, name)
			}
			c.Str[i] = string(data[off : off+n])
			off += n
		}
		if off != len(data) {
			return Column{}, fmt.Errorf("%w: column %q has %d trailing payload bytes", ErrCorrupted, name, len(data)-off)
		}
	default:
		return Column{}, fmt.Errorf("%w: column %q has unknown type %d", ErrCorrupted, name, uint8(typ))
	}
	return c, nil
}

func encodeBitmap(words []uint64) []byte {
	buf := make([]byte, 0, 8*len(words))
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return buf
}

func decodeBitmap(data []byte, rows int) ([]uint64, error) {
	want := (rows + 63) / 64
	if len(data) != 8*want {
		return nil, fmt.Errorf("%w: validity bitmap size %d, want %d", ErrCorrupted, len(data), 8*want)
	}
	words := make([]uint64, want)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[8*i:])
	}
	return words, nil
}

// corruptedEOF maps short reads onto ErrCorrupted so callers can treat
// truncated files uniformly with checksum failures.
func corruptedEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupted)
	}
	return err
}

func corruptedBlock(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupted)
	}
	if errors.Is(err, ErrCorrupted) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorrupted, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
