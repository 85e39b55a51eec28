package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

const (
	snapshotMagic   = "SSVI"
	snapshotVersion = uint32(1)
)

// Snapshot layout, zstd compressed: magic (4), version (4), dimension (4), count (8),
// then per entry: id (8), vector (dimension*4). Little endian throughout.
type snapshot struct {
	dimensions int
	ids        []int64
	data       []float32
}

func writeSnapshot(w io.Writer, dimensions int, ids []int64, data []float32) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)
	header := make([]byte, 20)
	copy(header[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(dimensions))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(ids)))
	if _, err := bw.Write(header); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, 8+4*dimensions)
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(id))
		for j := 0; j < dimensions; j++ {
			binary.LittleEndian.PutUint32(buf[8+4*j:], math.Float32bits(data[i*dimensions+j]))
		}
		if _, err := bw.Write(buf); err != nil {
			_ = enc.Close()
			return fmt.Errorf("write entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

func readSnapshot(r io.Reader) (*snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)
	header := make([]byte, 20)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[0:4]) != snapshotMagic {
		return nil, fmt.Errorf("invalid snapshot magic %q", header[0:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	n := binary.LittleEndian.Uint64(header[12:20])
	if dim == 0 && n > 0 {
		return nil, fmt.Errorf("snapshot has %d entries but no dimension", n)
	}
	snap := &snapshot{dimensions: dim}
	buf := make([]byte, 8+4*dim)
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		snap.ids = append(snap.ids, int64(binary.LittleEndian.Uint64(buf[0:8])))
		for j := 0; j < dim; j++ {
			snap.data = append(snap.data, math.Float32frombits(binary.LittleEndian.Uint32(buf[8+4*j:])))
		}
	}
	return snap, nil
}
