package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// EncodeRecords writes records as zstd-compressed JSON lines.
func EncodeRecords[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			zw.Close()
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecords is the inverse of EncodeRecords.
func DecodeRecords[T any](data []byte) ([]T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var out []T
	dec := json.NewDecoder(zr)
	for {
		var rec T
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
