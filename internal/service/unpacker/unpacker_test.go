package unpacker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/recorder-launcher/internal/archivetest"
	"github.com/oshokin/recorder-launcher/internal/platform"
)

// writeArchive stores data under dir/name and returns the path.
func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// TestExtractedDirName strips compression extensions only.
func TestExtractedDirName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"zulu8.38.0.13-ca-jre8.0.212-linux_x64.tar.gz": "zulu8.38.0.13-ca-jre8.0.212-linux_x64",
		"zulu8.38.0.13-ca-jdk8.0.212-win_x64.zip":      "zulu8.38.0.13-ca-jdk8.0.212-win_x64",
		"runtime-11.0.2.tgz":                           "runtime-11.0.2",
		"dir/ffmpeg-4.1-linux-64.ZIP":                  "ffmpeg-4.1-linux-64",
	}

	for archive, want := range cases {
		require.Equal(t, want, ExtractedDirName(archive), archive)
	}
}

// TestStrategyForArchive picks strategies from the extension alone.
func TestStrategyForArchive(t *testing.T) {
	t.Parallel()

	s, err := StrategyForArchive("a.tar.gz")
	require.NoError(t, err)
	require.Equal(t, platform.StrategyTarGz, s)

	s, err = StrategyForArchive("b.TGZ")
	require.NoError(t, err)
	require.Equal(t, platform.StrategyTarGz, s)

	s, err = StrategyForArchive("c.zip")
	require.NoError(t, err)
	require.Equal(t, platform.StrategyZip, s)

	_, err = StrategyForArchive("d.tar.xz")
	require.ErrorIs(t, err, ErrUnsupportedStrategy)
}

// TestUnpack_TarGzAlias extracts nested directories and renames the top level to the alias
// regardless of the version embedded in the archive name.
func TestUnpack_TarGzAlias(t *testing.T) {
	t.Parallel()

	names := []string{
		"zulu8.38.0.13-ca-jre8.0.212-linux_x64.tar.gz",
		"zulu8.40.0.25-ca-jre8.0.222-linux_x64.tar.gz",
		"zulu11.31.11-ca-jdk11.0.3-linux_x64.tar.gz",
	}

	for _, name := range names {
		dest := t.TempDir()
		top := ExtractedDirName(name)

		data := archivetest.TarGz(t,
			archivetest.Entry{Name: top + "/"},
			archivetest.Entry{Name: top + "/bin/"},
			archivetest.Entry{Name: top + "/bin/java", Body: "#!/bin/sh\n", Mode: 0o755},
			archivetest.Entry{Name: top + "/lib/amd64/server/libjvm.so", Body: "elf"},
			archivetest.Entry{Name: top + "/lib/libjava.so", Linkname: "amd64/server/libjvm.so"},
		)
		archive := writeArchive(t, t.TempDir(), name, data)

		require.NoError(t, Unpack(context.Background(), archive, dest, platform.StrategyTarGz))

		aliased, err := ApplyAlias(dest, name, "jvm")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dest, "jvm"), aliased)

		info, err := os.Stat(filepath.Join(aliased, "bin", "java"))
		require.NoError(t, err)

		if runtime.GOOS != "windows" {
			require.NotZero(t, info.Mode().Perm()&0o100, "runtime binary must stay executable")
		}

		contents, err := os.ReadFile(filepath.Join(aliased, "lib", "amd64", "server", "libjvm.so"))
		require.NoError(t, err)
		require.Equal(t, "elf", string(contents))

		_, err = os.Stat(filepath.Join(dest, top))
		require.ErrorIs(t, err, os.ErrNotExist)
	}
}

// TestUnpack_Zip extracts a media tool archive with junk directories.
func TestUnpack_Zip(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	data := archivetest.Zip(t,
		archivetest.Entry{Name: "ffmpeg", Body: "binary", Mode: 0o755},
		archivetest.Entry{Name: "__MACOSX/"},
		archivetest.Entry{Name: "__MACOSX/._ffmpeg", Body: "junk"},
		archivetest.Entry{Name: "docs/nested/readme.txt", Body: "hello"},
	)
	archive := writeArchive(t, t.TempDir(), "ffmpeg-4.1-linux-64.zip", data)

	require.NoError(t, Unpack(context.Background(), archive, dest, platform.StrategyZip))

	contents, err := os.ReadFile(filepath.Join(dest, "ffmpeg"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(contents))

	contents, err = os.ReadFile(filepath.Join(dest, "docs", "nested", "readme.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))

	_, err = os.Stat(filepath.Join(dest, "__MACOSX", "._ffmpeg"))
	require.NoError(t, err)
}

// TestUnpack_RejectsTraversal refuses entries escaping the destination.
func TestUnpack_RejectsTraversal(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()

	tarball := writeArchive(t, t.TempDir(), "evil.tar.gz", archivetest.TarGz(t,
		archivetest.Entry{Name: "../evil", Body: "x"},
	))
	err := Unpack(context.Background(), tarball, dest, platform.StrategyTarGz)
	require.ErrorIs(t, err, errIllegalPath)

	zipped := writeArchive(t, t.TempDir(), "evil.zip", archivetest.Zip(t,
		archivetest.Entry{Name: "a/../../evil", Body: "x"},
	))
	err = Unpack(context.Background(), zipped, dest, platform.StrategyZip)
	require.ErrorIs(t, err, errIllegalPath)

	if runtime.GOOS != "windows" {
		linked := writeArchive(t, t.TempDir(), "link.tar.gz", archivetest.TarGz(t,
			archivetest.Entry{Name: "passwd", Linkname: "/etc/passwd"},
		))
		err = Unpack(context.Background(), linked, dest, platform.StrategyTarGz)
		require.ErrorIs(t, err, errIllegalPath)
	}
}

// TestUnpack_Corrupt wraps format errors in DecompressionError.
func TestUnpack_Corrupt(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, t.TempDir(), "broken.tar.gz", []byte("not gzip"))

	err := Unpack(context.Background(), archive, t.TempDir(), platform.StrategyTarGz)

	var decompressionErr *DecompressionError
	require.ErrorAs(t, err, &decompressionErr)
	require.Equal(t, archive, decompressionErr.Archive)

	err = Unpack(context.Background(), archive, t.TempDir(), platform.StrategyNone)
	require.ErrorIs(t, err, ErrUnsupportedStrategy)
}

// TestApplyAlias_Missing reports a missing extracted directory.
func TestApplyAlias_Missing(t *testing.T) {
	t.Parallel()

	_, err := ApplyAlias(t.TempDir(), "zulu8.38.0.13-ca-jre8.0.212-linux_x64.tar.gz", "jvm")
	require.ErrorIs(t, err, ErrExtractedDirMissing)

	var decompressionErr *DecompressionError
	require.ErrorAs(t, err, &decompressionErr)
}
