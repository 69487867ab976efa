package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FilePersister stores the mapping as a JSON object in a single file.
// Keys are decimal post numbers written in ascending numeric order.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for the JSON file at path
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Name implements Persister
func (f *FilePersister) Name() string { return "file" }

// Path returns the backing file path
func (f *FilePersister) Path() string { return f.path }

// Load reads the JSON file. A missing file yields an empty mapping.
func (f *FilePersister) Load(ctx context.Context) (map[int]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}

	links := make(map[int]string, len(raw))
	for key, url := range raw {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse %s: key %q is not a post number", f.path, key)
		}
		links[n] = url
	}
	return links, nil
}

// Save rewrites the file through a temp file and rename.
func (f *FilePersister) Save(ctx context.Context, links map[int]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeLinks(links)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close implements Persister
func (f *FilePersister) Close() error { return nil }

// encodeLinks renders links as an indented JSON object with numerically
// ordered keys. encoding/json would order "10" before "9".
func encodeLinks(links map[int]string) ([]byte, error) {
	var buf bytes.Buffer
	if len(links) == 0 {
		buf.WriteString("{}\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("{\n")
	for i, n := range sortedKeys(links) {
		value, err := marshalString(links[n])
		if err != nil {
			return nil, fmt.Errorf("encode link for post %d: %w", n, err)
		}
		fmt.Fprintf(&buf, "  %q: %s", strconv.Itoa(n), value)
		if i < len(links)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// marshalString JSON-encodes s without HTML escaping so URLs stay readable.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
