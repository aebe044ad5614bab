// Package archivetest builds tar+gzip and zip fixtures for provisioning tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one archive member. Directories end with a slash.
type Entry struct {
	// Name is the slash-separated member path.
	Name string
	// Body is the file content.
	Body string
	// Mode is the permission bits; zero means 0o644 for files and 0o755 for directories.
	Mode fs.FileMode
	// Linkname makes the entry a symlink.
	Linkname string
}

func (e Entry) isDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

func (e Entry) mode() fs.FileMode {
	switch {
	case e.Mode != 0:
		return e.Mode
	case e.isDir():
		return 0o755
	default:
		return 0o644
	}
}

// TarGz returns a gzip-compressed tarball holding entries.
func TarGz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, e := range entries {
		header := &tar.Header{
			Name:     e.Name,
			Mode:     int64(e.mode()),
			Typeflag: tar.TypeReg,
			Size:     int64(len(e.Body)),
		}

		switch {
		case e.isDir():
			header.Typeflag = tar.TypeDir
			header.Size = 0
		case e.Linkname != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.Linkname
			header.Size = 0
		}

		require.NoError(t, tw.WriteHeader(header))

		if header.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	return buf.Bytes()
}

// Zip returns a zip archive holding entries.
func Zip(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		header := &zip.FileHeader{
			Name:   e.Name,
			Method: zip.Deflate,
		}

		mode := e.mode()
		if e.isDir() {
			mode |= fs.ModeDir
		}

		body := e.Body
		if e.Linkname != "" {
			mode |= fs.ModeSymlink
			body = e.Linkname
		}

		header.SetMode(mode)

		w, err := zw.CreateHeader(header)
		require.NoError(t, err)

		if !e.isDir() {
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}
