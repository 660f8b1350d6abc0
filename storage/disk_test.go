package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chat-server/errors"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func newTestStorage(t *testing.T, maxKB int64) (*DiskStorage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewDiskStorage(dir, Constraints{
		Extensions: []string{".png", ".jpg"},
		MaxSizeKB:  maxKB,
	}, slog.Default())
	require.NoError(t, err)
	return storage, dir
}

func Test_Store_And_Remove(t *testing.T) {
	req := require.New(t)
	storage, dir := newTestStorage(t, 64)

	ref, err := storage.Store(bytes.NewReader(pngHeader), "logo.png")
	req.NoError(err)
	req.NotEqual("logo.png", ref) // stored under a randomized name
	req.FileExists(filepath.Join(dir, ref))

	req.NoError(storage.Remove(ref))
	req.NoFileExists(filepath.Join(dir, ref))

	// Removal is idempotent.
	req.NoError(storage.Remove(ref))
	req.NoError(storage.Remove(""))
}

func Test_Store_Rejects_Unknown_Extension(t *testing.T) {
	req := require.New(t)
	storage, dir := newTestStorage(t, 64)

	_, err := storage.Store(bytes.NewReader([]byte("payload")), "script.exe")
	v, ok := errors.AsValidation(err)
	req.True(ok)
	req.Equal("this extension is not allowed", v.Fields["avatar"])

	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}

func Test_Store_Rejects_Oversized_Upload(t *testing.T) {
	req := require.New(t)
	storage, dir := newTestStorage(t, 1)

	oversized := append(append([]byte{}, pngHeader...), make([]byte, 2*1024)...)
	_, err := storage.Store(bytes.NewReader(oversized), "big.png")
	v, ok := errors.AsValidation(err)
	req.True(ok)
	req.Contains(v.Fields["avatar"], "exceeds")

	// The partial file must not survive the rejection.
	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}

func Test_Store_Rejects_Non_Image_Content(t *testing.T) {
	req := require.New(t)
	storage, dir := newTestStorage(t, 64)

	// Right extension, wrong bytes.
	_, err := storage.Store(bytes.NewReader([]byte("#!/bin/sh\nrm -rf /")), "fake.png")
	v, ok := errors.AsValidation(err)
	req.True(ok)
	req.Equal("file is not an image", v.Fields["avatar"])

	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}
