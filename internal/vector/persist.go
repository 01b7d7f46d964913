package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Index snapshots are one file per lecture under a directory, named
// lecture_<id>.idx. Format: dimension (4), n (4), then per chunk:
// textLen (4), text bytes, vector (dimension*4 bytes, little-endian).

const indexFilePrefix = "lecture_"
const indexFileSuffix = ".idx"

func indexFilePath(dir string, lectureID int64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", indexFilePrefix, lectureID, indexFileSuffix))
}

// Save writes every lecture index to dir, creating it if needed.
func (m *Manager) Save(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for lectureID, idx := range m.indexes {
		if err := saveIndex(indexFilePath(dir, lectureID), m.dimensions, idx); err != nil {
			return fmt.Errorf("save lecture %d: %w", lectureID, err)
		}
	}
	return nil
}

// Load reads all lecture index files from dir, replacing in-memory entries.
// A missing directory is not an error.
func (m *Manager) Load(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read index dir: %w", err)
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, indexFilePrefix) || !strings.HasSuffix(name, indexFileSuffix) {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, indexFilePrefix), indexFileSuffix)
		lectureID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		idx, err := loadIndex(filepath.Join(dir, name), m.dimensions)
		if err != nil {
			return fmt.Errorf("load lecture %d: %w", lectureID, err)
		}
		m.mu.Lock()
		m.indexes[lectureID] = idx
		m.mu.Unlock()
	}
	return nil
}

// RemoveSnapshot deletes the lecture's snapshot file if present.
func (m *Manager) RemoveSnapshot(dir string, lectureID int64) error {
	if dir == "" {
		return nil
	}
	err := os.Remove(indexFilePath(dir, lectureID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func saveIndex(path string, dimensions int, idx *lectureIndex) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(idx.chunks))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, chunk := range idx.chunks {
		text := []byte(chunk)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(text))); err != nil {
			return fmt.Errorf("write text len: %w", err)
		}
		if _, err := f.Write(text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(idx.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

func loadIndex(path string, dimensions int) (*lectureIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("dimension mismatch: file has %d, manager expects %d", dim, dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	idx := &lectureIndex{
		chunks:  make([]string, 0, n),
		vectors: make([][]float32, 0, n),
	}
	vecBuf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		var textLen uint32
		if err := binary.Read(f, binary.LittleEndian, &textLen); err != nil {
			return nil, fmt.Errorf("read text len: %w", err)
		}
		text := make([]byte, textLen)
		if _, err := io.ReadFull(f, text); err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		idx.chunks = append(idx.chunks, string(text))
		idx.vectors = append(idx.vectors, bytesToFloat32Slice(vecBuf))
	}
	return idx, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
