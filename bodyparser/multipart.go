// Copyright 2025 The NextRush Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bodyparser

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextrush/nextrush"
)

// Form is the parsed result of a multipart/form-data body.
type Form struct {
	Fields url.Values
	Files  map[string][]*File
}

// File returns the first uploaded file for the field, or nil.
func (f *Form) File(field string) *File {
	files := f.Files[field]
	if len(files) == 0 {
		return nil
	}

	return files[0]
}

// File is an uploaded multipart file, held in memory or spilled to a temp
// file depending on size and configuration.
type File struct {
	Field       string // Form field name
	Name        string // Sanitized filename (base name only)
	ContentType string
	Size        int64

	data     []byte // In-memory content, nil when spilled
	tempPath string // Path of the spilled temp file, "" when in memory
}

// InMemory reports whether the file content is buffered in memory.
func (f *File) InMemory() bool { return f.tempPath == "" }

// Open returns a reader over the file content.
func (f *File) Open() (io.ReadCloser, error) {
	if f.InMemory() {
		return io.NopCloser(bytes.NewReader(f.data)), nil
	}

	return os.Open(f.tempPath)
}

// Bytes returns the full file content.
func (f *File) Bytes() ([]byte, error) {
	if f.InMemory() {
		return f.data, nil
	}

	return os.ReadFile(f.tempPath)
}

// Save writes the file content to the given path.
func (f *File) Save(path string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)

	return err
}

// Close removes the spilled temp file, if any. Safe to call for in-memory
// files.
func (f *File) Close() error {
	if f.tempPath == "" {
		return nil
	}
	path := f.tempPath
	f.tempPath = ""
	f.data = nil

	return os.Remove(path)
}

// sanitizeFilename strips directory components from a client-supplied
// filename. Multipart filenames are attacker-controlled.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}

	return name
}

// parseMultipart streams the body part by part, enforcing the per-file
// limit, the file count limit, and the total limit independently. Each
// limit failure surfaces as 413 without buffering the rest of the body.
func parseMultipart(r io.Reader, boundary string, cfg *config) (any, error) {
	if boundary == "" {
		return nil, nextrush.E(nextrush.KindBadRequest, "multipart body missing boundary")
	}

	form := &Form{
		Fields: url.Values{},
		Files:  make(map[string][]*File),
	}

	var total int64
	fileCount := 0

	// The intake counter tells an exhausted total-limit guard apart from a
	// genuinely malformed body: once maxSize+1 bytes have been drawn, any
	// read error inside a part is a truncation, not corruption.
	intake := &countingReader{r: io.LimitReader(r, cfg.maxSize+1)}
	truncated := func() bool { return intake.n > cfg.maxSize }
	mr := multipart.NewReader(intake, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if truncated() {
				return nil, totalLimitError(cfg)
			}

			return nil, nextrush.E(nextrush.KindBadRequest, "malformed multipart body").Wrap(err)
		}

		if part.FileName() == "" {
			value, err := readBounded(part, cfg.maxSize-total)
			if err != nil {
				if truncated() {
					return nil, totalLimitError(cfg)
				}

				return nil, err
			}
			total += int64(len(value))
			form.Fields.Add(part.FormName(), string(value))
			continue
		}

		fileCount++
		if fileCount > cfg.maxFiles {
			return nil, nextrush.Ef(nextrush.KindPayloadTooLarge,
				"multipart upload exceeds %d file limit", cfg.maxFiles)
		}

		file, err := readFilePart(part, cfg)
		if err != nil {
			if truncated() {
				return nil, totalLimitError(cfg)
			}

			return nil, err
		}
		total += file.Size
		if total > cfg.maxSize {
			file.Close() //nolint:errcheck
			return nil, totalLimitError(cfg)
		}
		form.Files[file.Field] = append(form.Files[file.Field], file)
	}

	return form, nil
}

// countingReader tracks how many bytes have been drawn from the wrapped
// reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)

	return n, err
}

func totalLimitError(cfg *config) error {
	return nextrush.Ef(nextrush.KindPayloadTooLarge,
		"multipart body exceeds %d byte limit", cfg.maxSize)
}

// readFilePart buffers one file part, spilling to the temp directory when
// the buffer crosses the memory threshold and a temp dir is configured.
func readFilePart(part *multipart.Part, cfg *config) (*File, error) {
	file := &File{
		Field:       part.FormName(),
		Name:        sanitizeFilename(part.FileName()),
		ContentType: part.Header.Get("Content-Type"),
	}

	limited := io.LimitReader(part, cfg.maxFileSize+1)

	spillAt := cfg.memoryThreshold
	if cfg.tempDir == "" || spillAt > cfg.maxFileSize {
		spillAt = cfg.maxFileSize
	}

	buf := make([]byte, 0, min64(spillAt, 32<<10))
	var err error
	buf, err = appendUpTo(buf, limited, spillAt+1)
	if err != nil {
		return nil, nextrush.E(nextrush.KindBadRequest, "failed to read multipart file").Wrap(err)
	}

	if int64(len(buf)) <= spillAt {
		if int64(len(buf)) > cfg.maxFileSize {
			return nil, fileLimitError(file, cfg)
		}
		file.data = buf
		file.Size = int64(len(buf))

		return file, nil
	}

	// Crossed the threshold with a temp dir configured: spill.
	if cfg.tempDir == "" {
		return nil, fileLimitError(file, cfg)
	}
	tmp, err := os.CreateTemp(cfg.tempDir, "nextrush-upload-*")
	if err != nil {
		return nil, nextrush.E(nextrush.KindInternal, "failed to create upload temp file").Wrap(err)
	}
	n, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(buf), limited))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck

		return nil, nextrush.E(nextrush.KindInternal, "failed to write upload temp file").Wrap(err)
	}
	if n > cfg.maxFileSize {
		os.Remove(tmp.Name()) //nolint:errcheck

		return nil, fileLimitError(file, cfg)
	}
	file.tempPath = tmp.Name()
	file.Size = n

	return file, nil
}

func fileLimitError(file *File, cfg *config) error {
	return nextrush.Ef(nextrush.KindPayloadTooLarge,
		"file %q exceeds %d byte limit", file.Name, cfg.maxFileSize)
}

// appendUpTo reads from r into buf until at least limit bytes total or EOF.
// Nothing read is dropped; the final chunk may push buf slightly past limit.
func appendUpTo(buf []byte, r io.Reader, limit int64) ([]byte, error) {
	chunk := make([]byte, 32<<10)
	for int64(len(buf)) < limit {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}

	return buf, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}
