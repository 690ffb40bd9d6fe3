package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// SourceFile is one local input to a generation flow. Open is called once,
// right before the file's bytes are sent.
type SourceFile struct {
	Name        string
	ContentType string
	Size        int64 // negative when unknown
	Open        func() (io.ReadCloser, error)
}

// FileFromPath describes a file on disk. The content type is sniffed from the
// file's leading bytes.
func FileFromPath(path string) (SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("could not stat %s: %w", path, err)
	}
	if info.IsDir() {
		return SourceFile{}, fmt.Errorf("%s is a directory", path)
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("could not detect content type of %s: %w", path, err)
	}
	return SourceFile{
		Name:        filepath.Base(path),
		ContentType: mtype.String(),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromBytes describes an in-memory file. An empty contentType is sniffed.
func FileFromBytes(name, contentType string, data []byte) SourceFile {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return SourceFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func fileNames(files []SourceFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
