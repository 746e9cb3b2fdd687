package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/pattern"
)

// Model file format: a fixed header followed by a zstd-compressed body.
//
//	Header (64 bytes):
//	  - Magic (4): "OGMV"
//	  - Format (2): ModelFormat
//	  - Flags (2): reserved
//	  - Version (4): caller-assigned model version
//	  - MiningCount (4)
//	  - EntryCount (4)
//	  - Checksum (4): CRC32 of the uncompressed body
//	  - BodySize (4): uncompressed body length
//	  - Name (32): NUL-padded
//	  - Reserved (4)
//	Body, per mining in ID order:
//	  - uvarint id length, id bytes
//	  - uvarint entry count
//	  - per entry: uvarint code, cell (1), side (1), gamma float64 LE (8)
//
// Only Gamma is stored. Entries at the default Gamma are omitted.
const (
	ModelMagic      = "OGMV"
	ModelFormat     = 1
	ModelHeaderSize = 64
	MaxNameLen      = 32
)

var (
	ErrBadMagic           = errors.New("not a model file")
	ErrChecksum           = errors.New("model checksum mismatch")
	ErrUnsupportedVersion = errors.New("unsupported model format")
)

// ModelHeader describes a stored model.
type ModelHeader struct {
	Format      uint16
	Flags       uint16
	Version     uint32
	MiningCount uint32
	EntryCount  uint32
	Checksum    uint32
	BodySize    uint32
	Name        string
}

func encodeModelHeader(h *ModelHeader) []byte {
	buf := make([]byte, ModelHeaderSize)
	copy(buf[0:4], ModelMagic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Format)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], h.MiningCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[20:24], h.Checksum)
	binary.LittleEndian.PutUint32(buf[24:28], h.BodySize)
	copy(buf[28:60], h.Name)
	return buf
}

func decodeModelHeader(buf []byte) (*ModelHeader, error) {
	if len(buf) < ModelHeaderSize {
		return nil, fmt.Errorf("%w: header too short", ErrBadMagic)
	}
	if string(buf[0:4]) != ModelMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, buf[0:4])
	}
	h := &ModelHeader{
		Format:      binary.LittleEndian.Uint16(buf[4:6]),
		Flags:       binary.LittleEndian.Uint16(buf[6:8]),
		Version:     binary.LittleEndian.Uint32(buf[8:12]),
		MiningCount: binary.LittleEndian.Uint32(buf[12:16]),
		EntryCount:  binary.LittleEndian.Uint32(buf[16:20]),
		Checksum:    binary.LittleEndian.Uint32(buf[20:24]),
		BodySize:    binary.LittleEndian.Uint32(buf[24:28]),
		Name:        string(bytes.TrimRight(buf[28:60], "\x00")),
	}
	if h.Format != ModelFormat {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Format)
	}
	return h, nil
}

func encodeBody(model *pattern.Model) (body []byte, minings, entries uint32) {
	ms := make([]*pattern.Mining, len(model.Minings))
	copy(ms, model.Minings)
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID() < ms[j].ID() })

	var rec []byte
	for _, mn := range ms {
		id := mn.ID()
		body = binary.AppendUvarint(body, uint64(len(id)))
		body = append(body, id...)

		rec = rec[:0]
		n := uint64(0)
		mn.Range(func(k pattern.Key, st *pattern.Stat) {
			if st.Gamma == pattern.GammaDefault {
				return
			}
			rec = binary.AppendUvarint(rec, uint64(k.Code))
			rec = append(rec, k.Cell, byte(k.Side))
			rec = binary.LittleEndian.AppendUint64(rec, math.Float64bits(st.Gamma))
			n++
		})
		body = binary.AppendUvarint(body, n)
		body = append(body, rec...)
		minings++
		entries += uint32(n)
	}
	return body, minings, entries
}

func decodeBody(body []byte, h *ModelHeader) (*pattern.Model, error) {
	model := &pattern.Model{}
	r := bytes.NewReader(body)
	var entries uint32
	for i := uint32(0); i < h.MiningCount; i++ {
		idLen, err := binary.ReadUvarint(r)
		if err != nil || idLen > uint64(r.Len()) {
			return nil, fmt.Errorf("mining %d: bad id length", i)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("mining %d: %w", i, err)
		}
		mn, err := pattern.ParseMiningID(string(id))
		if err != nil {
			return nil, fmt.Errorf("mining %d: %w", i, err)
		}
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("mining %s: entry count: %w", id, err)
		}
		for j := uint64(0); j < n; j++ {
			code, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("mining %s entry %d: %w", id, j, err)
			}
			var rest [10]byte
			if _, err := io.ReadFull(r, rest[:]); err != nil {
				return nil, fmt.Errorf("mining %s entry %d: %w", id, j, err)
			}
			side := bitboard.Side(rest[1])
			if side != bitboard.Black && side != bitboard.White {
				return nil, fmt.Errorf("mining %s entry %d: bad side %d", id, j, rest[1])
			}
			k := pattern.Key{Code: uint32(code), Cell: rest[0], Side: side}
			mn.SetGamma(k, math.Float64frombits(binary.LittleEndian.Uint64(rest[2:])))
		}
		entries += uint32(n)
		model.Add(mn)
	}
	if entries != h.EntryCount {
		return nil, fmt.Errorf("entry count %d, header says %d", entries, h.EntryCount)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return model, nil
}

// Encode writes model to w.
func Encode(w io.Writer, name string, version uint32, model *pattern.Model) error {
	if len(name) > MaxNameLen {
		return fmt.Errorf("model name %q longer than %d bytes", name, MaxNameLen)
	}
	body, minings, entries := encodeBody(model)
	h := ModelHeader{
		Format:      ModelFormat,
		Version:     version,
		MiningCount: minings,
		EntryCount:  entries,
		Checksum:    crc32.ChecksumIEEE(body),
		BodySize:    uint32(len(body)),
		Name:        name,
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, nil)

	if _, err := w.Write(encodeModelHeader(&h)); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*pattern.Model, *ModelHeader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	h, err := decodeModelHeader(data)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, err
	}
	defer dec.Close()
	body, err := dec.DecodeAll(data[ModelHeaderSize:], make([]byte, 0, min(h.BodySize, 64<<20)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decompress: %v", ErrChecksum, err)
	}
	if crc32.ChecksumIEEE(body) != h.Checksum || uint32(len(body)) != h.BodySize {
		return nil, nil, ErrChecksum
	}
	model, err := decodeBody(body, h)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %q: %w", h.Name, err)
	}
	return model, h, nil
}

// WriteModel writes model to path through a temporary file and rename.
func WriteModel(path, name string, version uint32, model *pattern.Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err := Encode(f, name, version, model); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadModel loads a model file.
func ReadModel(path string) (*pattern.Model, *ModelHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Decode(f)
}

// ReadModelHeader reads just the header of a model file.
func ReadModelHeader(path string) (*ModelHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, ModelHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	return decodeModelHeader(buf)
}
