package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	nxerrors "github.com/MerijnSC/RAG-project/internal/errors"
	"github.com/MerijnSC/RAG-project/internal/span"
)

// data.bin layout, little endian:
//
//	magic "NXSE" | version u16 | reserved u16 | count u32 | dims u32
//	modelLen u32 | model bytes
//	count x (start i64, end i64)
//	count x dims x f32
//	crc32 (IEEE) of everything above
const (
	dataMagic   = "NXSE"
	dataVersion = 1

	headerSize  = 4 + 2 + 2 + 4 + 4 + 4
	maxModelLen = 1 << 16
)

// EncodeData writes spans and embeddings in the data.bin format.
func EncodeData(w io.Writer, spans []span.Span, embeddings [][]float32, model string) error {
	if len(spans) != len(embeddings) {
		return fmt.Errorf("%d spans for %d embeddings", len(spans), len(embeddings))
	}
	if len(model) > maxModelLen {
		return fmt.Errorf("model name too long: %d bytes", len(model))
	}
	dims := 0
	if len(embeddings) > 0 {
		dims = len(embeddings[0])
	}

	h := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(w, h))
	le := binary.LittleEndian

	var hdr [headerSize]byte
	copy(hdr[0:4], dataMagic)
	le.PutUint16(hdr[4:6], dataVersion)
	le.PutUint32(hdr[8:12], uint32(len(spans)))
	le.PutUint32(hdr[12:16], uint32(dims))
	le.PutUint32(hdr[16:20], uint32(len(model)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := bw.WriteString(model); err != nil {
		return err
	}

	var buf [16]byte
	for _, s := range spans {
		le.PutUint64(buf[0:8], uint64(int64(s.Start)))
		le.PutUint64(buf[8:16], uint64(int64(s.End)))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}

	for i, v := range embeddings {
		if len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
		for _, x := range v {
			le.PutUint32(buf[0:4], math.Float32bits(x))
			if _, err := bw.Write(buf[0:4]); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}

	le.PutUint32(buf[0:4], h.Sum32())
	_, err := w.Write(buf[0:4])
	return err
}

// DecodeData parses a data.bin image. Any structural problem or checksum
// mismatch is reported as ERR_206_FILE_CORRUPT.
func DecodeData(data []byte) ([]span.Span, [][]float32, string, error) {
	corrupt := func(format string, args ...any) error {
		return nxerrors.Newf(nxerrors.ErrCodeFileCorrupt, "data.bin: "+format, args...)
	}

	if len(data) < headerSize+4 {
		return nil, nil, "", corrupt("truncated header (%d bytes)", len(data))
	}

	le := binary.LittleEndian
	body, sum := data[:len(data)-4], le.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, nil, "", corrupt("checksum mismatch")
	}

	if !bytes.Equal(body[0:4], []byte(dataMagic)) {
		return nil, nil, "", corrupt("bad magic %q", body[0:4])
	}
	if v := le.Uint16(body[4:6]); v != dataVersion {
		return nil, nil, "", corrupt("unsupported version %d", v)
	}
	count := int(le.Uint32(body[8:12]))
	dims := int(le.Uint32(body[12:16]))
	modelLen := int(le.Uint32(body[16:20]))

	if modelLen > maxModelLen || count > len(body)/16 || (count > 0 && dims > len(body)/(4*count)) {
		return nil, nil, "", corrupt("header counts exceed file size")
	}
	want := headerSize + modelLen + count*16 + count*dims*4
	if len(body) != want {
		return nil, nil, "", corrupt("size %d does not match header (want %d)", len(body), want)
	}

	off := headerSize
	model := string(body[off : off+modelLen])
	off += modelLen

	spans := make([]span.Span, count)
	for i := range spans {
		spans[i] = span.Span{
			Start: int(int64(le.Uint64(body[off : off+8]))),
			End:   int(int64(le.Uint64(body[off+8 : off+16]))),
		}
		off += 16
	}

	embeddings := make([][]float32, count)
	for i := range embeddings {
		v := make([]float32, dims)
		for d := range v {
			v[d] = math.Float32frombits(le.Uint32(body[off : off+4]))
			off += 4
		}
		embeddings[i] = v
	}

	return spans, embeddings, model, nil
}
