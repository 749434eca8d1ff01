package local

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/analyzer"
)

// MagicBytes identifies a valid .btix snapshot file.
const (
	MagicBytes    uint32 = 0x42544958
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 4
)

// snapshotHeader is the fixed header written at the start of every snapshot.
type snapshotHeader struct {
	Magic      uint32
	Version    uint32
	DocCount   uint32
	CreatedAt  int64
	PayloadLen uint64
}

// SnapshotFile is the file name used inside a data directory.
const SnapshotFile = "terms.btix"

// Open loads the index persisted at path, or starts an empty one if the file
// does not exist yet. Flush and Close write back to path.
func Open(path string, a analyzer.Analyzer) (*Index, error) {
	idx := New(a)
	idx.path = path
	docs, err := readSnapshot(path)
	if errors.Is(err, fs.ErrNotExist) {
		idx.logger.Info("starting empty index", "path", path)
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		idx.put(d)
	}
	idx.logger.Info("index snapshot loaded", "path", path, "docs", len(docs))
	return idx, nil
}

// writeSnapshot atomically replaces path. It writes to a .tmp file first and
// renames on success.
func writeSnapshot(path string, docs []searchindex.Document) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	header := snapshotHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		DocCount:   uint32(len(docs)),
		CreatedAt:  time.Now().Unix(),
		PayloadLen: uint64(len(payload)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.DocCount)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[24:32], header.PayloadLen)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))

	for _, chunk := range [][]byte{headerBytes, payload, footer} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

func readSnapshot(path string) ([]searchindex.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("invalid snapshot file %s: truncated", path)
	}
	header := snapshotHeader{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		DocCount:   binary.LittleEndian.Uint32(data[8:12]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(data[16:24])),
		PayloadLen: binary.LittleEndian.Uint64(data[24:32]),
	}
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid snapshot file %s: bad magic bytes %x", path, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot file %s: unsupported version %d", path, header.Version)
	}
	end := uint64(HeaderSize) + header.PayloadLen
	if end+uint64(FooterSize) != uint64(len(data)) {
		return nil, fmt.Errorf("invalid snapshot file %s: payload length mismatch", path)
	}
	payload := data[HeaderSize:end]
	if got, want := crc32.ChecksumIEEE(payload), binary.LittleEndian.Uint32(data[end:]); got != want {
		return nil, fmt.Errorf("invalid snapshot file %s: checksum mismatch", path)
	}
	var docs []searchindex.Document
	if err := json.Unmarshal(payload, &docs); err != nil {
		return nil, fmt.Errorf("parsing snapshot documents: %w", err)
	}
	if uint32(len(docs)) != header.DocCount {
		return nil, fmt.Errorf("invalid snapshot file %s: expected %d docs, found %d", path, header.DocCount, len(docs))
	}
	return docs, nil
}
