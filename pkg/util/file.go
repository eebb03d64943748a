// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package util holds small helpers shared by the binary's packages.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxConfigFileSize bounds files read with ReadFileSafely.
const MaxConfigFileSize = 1 << 20

// ReadFileSafely reads a regular file after cleaning the path, refusing
// directories, devices and anything larger than maxBytes.
func ReadFileSafely(path string, maxBytes int64) ([]byte, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for %s: %w", path, err)
	}

	f, err := os.Open(absPath) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", absPath)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", absPath, info.Size(), maxBytes)
	}

	return io.ReadAll(io.LimitReader(f, maxBytes))
}
