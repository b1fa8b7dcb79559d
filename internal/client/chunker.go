package client

import (
	"fmt"
	"io"
	"os"
)

// FileChunker splits a file into fixed-size chunks for the chunked upload
// path. The last chunk may be shorter.
type FileChunker struct {
	file      *os.File
	size      int64
	chunkSize int64
}

func OpenFileChunker(path string, chunkSize int64) (*FileChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &FileChunker{file: file, size: fi.Size(), chunkSize: chunkSize}, nil
}

func (c *FileChunker) Size() int64 {
	return c.size
}

// Count returns the number of chunks the file splits into.
func (c *FileChunker) Count() int {
	n := int(c.size / c.chunkSize)
	if c.size%c.chunkSize != 0 {
		n++
	}
	return n
}

// Chunk returns a reader over chunk i.
func (c *FileChunker) Chunk(i int) (io.Reader, error) {
	if i < 0 || i >= c.Count() {
		return nil, fmt.Errorf("chunk %d out of range", i)
	}
	off := int64(i) * c.chunkSize
	length := c.chunkSize
	if off+length > c.size {
		length = c.size - off
	}
	return io.NewSectionReader(c.file, off, length), nil
}

func (c *FileChunker) Close() error {
	return c.file.Close()
}
