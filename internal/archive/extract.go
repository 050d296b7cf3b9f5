package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/models"
	"github.com/klauspost/compress/zip"
)

// Extract decodes every file entry of data. Directory entries are skipped.
// It fails with common.ErrCorruptArchive if data is not a readable zip.
func Extract(data []byte) (models.FileMap, error) {
	zr, err := openReader(data)
	if err != nil {
		return nil, err
	}

	files := make(models.FileMap, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		files[f.Name] = content
	}
	return files, nil
}

// ExtractFirst returns the first file entry, in archive order, whose name
// satisfies match. Only that entry is decompressed. It fails with
// common.ErrorNotFound when nothing matches.
func ExtractFirst(data []byte, match func(name string) bool) (string, []byte, error) {
	zr, err := openReader(data)
	if err != nil {
		return "", nil, err
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return "", nil, err
		}
		return f.Name, content, nil
	}
	return "", nil, fmt.Errorf("no matching entry: %w", common.ErrorNotFound)
}

// HasSuffixFold matches names ending in suffix, ignoring case.
func HasSuffixFold(suffix string) func(string) bool {
	suffix = strings.ToLower(suffix)
	return func(name string) bool {
		return strings.HasSuffix(strings.ToLower(name), suffix)
	}
}

func openReader(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	return zr, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrCorruptArchive, f.Name, err)
	}
	return content, nil
}
