package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// VectorExt is the file extension for persisted chunk vectors.
const VectorExt = ".vec"

const chunkFilePrefix = "chunk_"

// ChunkFileName returns the vector file name for chunk index i, e.g. "chunk_3.vec".
func ChunkFileName(i int) string {
	return fmt.Sprintf("%s%d%s", chunkFilePrefix, i, VectorExt)
}

// ChunkIndexFromRef parses the chunk index out of a vector file name.
func ChunkIndexFromRef(ref string) (int, error) {
	name := strings.TrimSuffix(ref, VectorExt)
	if !strings.HasPrefix(name, chunkFilePrefix) {
		return 0, fmt.Errorf("malformed chunk ref %q", ref)
	}
	i, err := strconv.Atoi(strings.TrimPrefix(name, chunkFilePrefix))
	if err != nil {
		return 0, fmt.Errorf("malformed chunk ref %q: %w", ref, err)
	}
	if i < 0 {
		return 0, fmt.Errorf("malformed chunk ref %q: negative index", ref)
	}
	return i, nil
}

// WriteVectorFile writes one embedding to path. Format: uint32 dimension
// followed by dimension little-endian float32 values.
func WriteVectorFile(path string, vector []float32) error {
	buf := make([]byte, 4+len(vector)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(vector)))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	return nil
}

// ReadVectorFile reads one embedding from path. A file whose length does not
// match its declared dimension is rejected as malformed.
func ReadVectorFile(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("vector file %s: truncated header", path)
	}
	dim := int(binary.LittleEndian.Uint32(data))
	if len(data) != 4+dim*4 {
		return nil, fmt.Errorf("vector file %s: %d bytes for dimension %d", path, len(data), dim)
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	return vector, nil
}
