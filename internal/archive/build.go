// Package archive packages submitted documents into a single zip archive
// and reads such archives back.
//
// Archives are deterministic: the same ordered input always produces the
// same bytes, so the content hash of a resubmitted, unchanged document set
// is stable and can be used as a cache key.
package archive

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/mimex"
	"github.com/dmitrijs2005/recdocs/internal/models"
	"github.com/klauspost/compress/zip"
)

// entryModTime is written into every entry header. A fixed value keeps the
// archive bytes independent of the packaging time.
var entryModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// File is one uploaded file: its original name and bytes.
type File struct {
	Name    string
	Content []byte
}

// SourceFile is the content of one form field. A field may be empty but
// must not carry more than one file.
type SourceFile struct {
	FieldKey string
	Title    string
	Files    []File
}

// EntryMeta links a form field to the archive entry built from it.
type EntryMeta struct {
	Key              string `json:"key"`
	Title            string `json:"title"`
	OriginalFileName string `json:"originalFileName"`
	ZipFileName      string `json:"zipFileName"`
}

// Package is the result of Build.
type Package struct {
	Data     []byte
	Hash     string
	Entries  []EntryMeta
	Manifest []models.ManifestEntry
}

type buildOptions struct {
	now   func() time.Time
	level int
}

// Option configures Build.
type Option func(*buildOptions)

// WithClock sets the clock used for manifest upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) {
		o.now = now
	}
}

// Build validates inputs and writes them, in order, into a zip archive.
//
// It fails with common.ErrMultipleFilesPerField before writing anything if
// a field carries more than one file. Empty fields are skipped.
func Build(inputs []SourceFile, opts ...Option) (*Package, error) {
	o := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	for _, in := range inputs {
		if len(in.Files) > 1 {
			return nil, fmt.Errorf("field %q has %d files: %w", in.FieldKey, len(in.Files), common.ErrMultipleFilesPerField)
		}
	}

	uploadedAt := o.now().UnixMilli()
	used := make(map[string]struct{}, len(inputs))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	pkg := &Package{}
	for _, in := range inputs {
		if len(in.Files) == 0 {
			continue
		}
		f := in.Files[0]

		name := uniqueName(entryName(in, f.Name), used)
		used[strings.ToLower(name)] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: entryModTime,
		})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", name, err)
		}

		pkg.Entries = append(pkg.Entries, EntryMeta{
			Key:              in.FieldKey,
			Title:            in.Title,
			OriginalFileName: f.Name,
			ZipFileName:      name,
		})
		pkg.Manifest = append(pkg.Manifest, models.ManifestEntry{
			FileName:      name,
			OriginalTitle: in.Title,
			Size:          int64(len(f.Content)),
			Type:          mimex.Resolve(f.Name),
			UploadedAt:    uploadedAt,
		})
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	pkg.Data = buf.Bytes()
	pkg.Hash = Hash(pkg.Data)
	return pkg, nil
}

// SanitizeTitle replaces whitespace with '_' and drops every character
// outside [A-Za-z0-9._-].
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}

// entryName is the sanitized title plus the original extension. A title that
// already ends in that extension is not suffixed twice.
func entryName(in SourceFile, originalName string) string {
	base := SanitizeTitle(in.Title)
	if base == "" {
		base = SanitizeTitle(in.FieldKey)
	}
	if base == "" {
		base = "document"
	}

	ext := mimex.Extension(originalName)
	if ext == "" || strings.HasSuffix(strings.ToLower(base), "."+ext) {
		return base
	}
	return base + "." + ext
}

// uniqueName appends _2, _3, ... before the extension until name is unused.
// Zip readers on case-insensitive filesystems collide on case, so lookups
// are case-folded.
func uniqueName(name string, used map[string]struct{}) string {
	if _, ok := used[strings.ToLower(name)]; !ok {
		return name
	}

	stem, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if _, ok := used[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}
