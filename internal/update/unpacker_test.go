package update

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveUnpacker_Zip(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{
		"App.app/":                    "",
		"App.app/Contents/MacOS/app":  "v2",
		"App.app/Contents/Info.plist": "<plist/>",
		"README.txt":                  "notes",
	})

	bundle, err := NewArchiveUnpacker("").Unpack(archive, scratch)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(scratch, unpackDirName, "App.app"), bundle.Path)
	assert.Equal(t, archive, bundle.SourceArchive)
	assert.Equal(t, "App.app", bundle.Name())
	assert.Equal(t, "v2", bundleMarker(t, bundle.Path))

	info, err := os.Stat(filepath.Join(bundle.Path, "Contents", "MacOS", "app"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm(), "executable bit survives extraction")
}

func TestArchiveUnpacker_ZipSymlink(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")

	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("App.app/Contents/MacOS/app")
	require.NoError(t, err)
	_, _ = w.Write([]byte("v2"))
	hdr := &zip.FileHeader{Name: "App.app/Contents/current"}
	hdr.SetMode(os.ModeSymlink | 0777)
	w, err = zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, _ = w.Write([]byte("MacOS"))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	bundle, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)
	require.NoError(t, err)

	link, err := os.Readlink(filepath.Join(bundle.Path, "Contents", "current"))
	require.NoError(t, err)
	assert.Equal(t, "MacOS", link)
}

func TestArchiveUnpacker_TarGz(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.tar.gz")

	f, err := os.Create(archive)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "Tool.app/", Typeflag: tar.TypeDir, Mode: 0755}))
	content := []byte("v3")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "Tool.app/Contents/MacOS/app", Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(content))}))
	_, err = tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	bundle, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)
	require.NoError(t, err)
	assert.Equal(t, "Tool.app", bundle.Name())
	assert.Equal(t, "v3", bundleMarker(t, bundle.Path))
}

func TestArchiveUnpacker_NoBundle(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{"README.txt": "nothing here"})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var ambiguous *AmbiguousBundleError
	require.ErrorAs(t, err, &ambiguous)
	assert.Empty(t, ambiguous.Candidates)
	assert.Contains(t, err.Error(), "no .app bundle found")
}

func TestArchiveUnpacker_TwoBundles(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{
		"B.app/Contents/MacOS/app": "b",
		"A.app/Contents/MacOS/app": "a",
	})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var ambiguous *AmbiguousBundleError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, []string{"A.app", "B.app"}, ambiguous.Candidates)
}

func TestArchiveUnpacker_CaseInsensitiveSuffix(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{"Legacy.APP/Contents/MacOS/app": "old"})

	bundle, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)
	require.NoError(t, err)
	assert.Equal(t, "Legacy.APP", bundle.Name())
}

func TestArchiveUnpacker_Corrupt(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	require.NoError(t, os.WriteFile(archive, []byte("this is not an archive"), 0644))

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.Equal(t, archive, unpackErr.Archive)
}

func TestArchiveUnpacker_PathTraversal(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{"../escape.txt": "gotcha"})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.NoFileExists(t, filepath.Join(scratch, "escape.txt"))
}

// zipEntry is one ordered entry for writeZipEntries. A non-empty link makes
// the entry a symlink.
type zipEntry struct {
	name    string
	content string
	link    string
}

func writeZipEntries(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name}
		body := e.content
		if e.link != "" {
			hdr.SetMode(os.ModeSymlink | 0777)
			body = e.link
		} else {
			hdr.SetMode(0644)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// tarEntry is one ordered entry for writeTarGz.
type tarEntry struct {
	header  tar.Header
	content string
}

func writeTarGz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := e.header
		hdr.Size = int64(len(e.content))
		require.NoError(t, tw.WriteHeader(&hdr))
		if e.content != "" {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
}

func TestArchiveUnpacker_WriteThroughSymlink(t *testing.T) {
	tests := []struct {
		name string
		link string
	}{
		{name: "absolute target", link: "OUTSIDE"},
		{name: "relative target", link: "../../outside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratch := t.TempDir()
			outside := filepath.Join(scratch, "outside")
			require.NoError(t, os.MkdirAll(outside, 0755))
			link := strings.ReplaceAll(tt.link, "OUTSIDE", outside)

			archive := filepath.Join(scratch, "update.zip")
			writeZipEntries(t, archive, []zipEntry{
				{name: "App.app/Contents/MacOS/app", content: "v2"},
				{name: "App.app/link", link: link},
				{name: "App.app/link/pwned.txt", content: "gotcha"},
			})

			_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

			var unpackErr *UnpackError
			require.ErrorAs(t, err, &unpackErr)
			assert.NoFileExists(t, filepath.Join(outside, "pwned.txt"))
		})
	}
}

func TestArchiveUnpacker_WriteThroughChainedSymlinks(t *testing.T) {
	scratch := t.TempDir()
	outside := filepath.Join(scratch, "outside")
	require.NoError(t, os.MkdirAll(outside, 0755))

	// Each link looks harmless on its own; together they lead out of the
	// extraction directory.
	archive := filepath.Join(scratch, "update.zip")
	writeZipEntries(t, archive, []zipEntry{
		{name: "App.app/up", link: ".."},
		{name: "App.app/up/esc", link: "../outside"},
		{name: "App.app/up/esc/pwned.txt", content: "gotcha"},
	})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.Contains(t, err.Error(), "outside the extraction directory")
	assert.NoFileExists(t, filepath.Join(outside, "pwned.txt"))
}

func TestArchiveUnpacker_TarSymlinkEscape(t *testing.T) {
	scratch := t.TempDir()
	outside := filepath.Join(scratch, "outside")
	require.NoError(t, os.MkdirAll(outside, 0755))

	archive := filepath.Join(scratch, "update.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{header: tar.Header{Name: "App.app/link", Typeflag: tar.TypeSymlink, Linkname: outside}},
		{header: tar.Header{Name: "App.app/link/pwned.txt", Typeflag: tar.TypeReg, Mode: 0644}, content: "gotcha"},
	})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.NoFileExists(t, filepath.Join(outside, "pwned.txt"))
}

func TestArchiveUnpacker_TarHardLink(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{header: tar.Header{Name: "App.app/Contents/MacOS/app", Typeflag: tar.TypeReg, Mode: 0755}, content: "v2"},
		{header: tar.Header{Name: "App.app/Contents/MacOS/app-helper", Typeflag: tar.TypeLink, Linkname: "App.app/Contents/MacOS/app"}},
	})

	bundle, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)
	require.NoError(t, err)

	exe, err := os.Stat(filepath.Join(bundle.Path, "Contents", "MacOS", "app"))
	require.NoError(t, err)
	helper, err := os.Stat(filepath.Join(bundle.Path, "Contents", "MacOS", "app-helper"))
	require.NoError(t, err, "hard-linked entries are extracted")
	assert.True(t, os.SameFile(exe, helper))
}

func TestArchiveUnpacker_TarHardLinkEscape(t *testing.T) {
	scratch := t.TempDir()
	secret := filepath.Join(scratch, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("private"), 0600))

	archive := filepath.Join(scratch, "update.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{header: tar.Header{Name: "App.app/Contents/MacOS/app", Typeflag: tar.TypeReg, Mode: 0755}, content: "v2"},
		{header: tar.Header{Name: "App.app/secret", Typeflag: tar.TypeLink, Linkname: "../secret.txt"}},
	})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.NoFileExists(t, filepath.Join(scratch, unpackDirName, "App.app", "secret"))
}

func TestArchiveUnpacker_TarUnsupportedEntry(t *testing.T) {
	scratch := t.TempDir()
	archive := filepath.Join(scratch, "update.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{header: tar.Header{Name: "App.app/Contents/MacOS/app", Typeflag: tar.TypeReg, Mode: 0755}, content: "v2"},
		{header: tar.Header{Name: "App.app/pipe", Typeflag: tar.TypeFifo, Mode: 0644}},
	})

	_, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.Contains(t, err.Error(), "unsupported entry App.app/pipe")
}

func TestArchiveUnpacker_ReplacesPreviousExtraction(t *testing.T) {
	scratch := t.TempDir()
	makeBundle(t, filepath.Join(scratch, unpackDirName), "Stale.app", "stale")

	archive := filepath.Join(scratch, "update.zip")
	writeZip(t, archive, map[string]string{"App.app/Contents/MacOS/app": "fresh"})

	bundle, err := NewArchiveUnpacker(".app").Unpack(archive, scratch)
	require.NoError(t, err, "leftovers from an earlier attempt must not make the result ambiguous")
	assert.Equal(t, "fresh", bundleMarker(t, bundle.Path))
}

func TestCommandUnpacker(t *testing.T) {
	scratch := t.TempDir()
	runner := &fakeRunner{reply: func(name string, args []string) ([]byte, error) {
		// Emulate unzip by creating the bundle in the -d directory.
		dest := args[len(args)-1]
		makeBundle(t, dest, "App.app", "from unzip")
		return nil, nil
	}}

	bundle, err := NewCommandUnpacker(".app", runner).Unpack("/tmp/update.zip", scratch)
	require.NoError(t, err)
	assert.Equal(t, "from unzip", bundleMarker(t, bundle.Path))

	require.Len(t, runner.commands, 1)
	dest := filepath.Join(scratch, unpackDirName)
	assert.Equal(t, []string{"unzip", "-o", "-q", "/tmp/update.zip", "-d", dest}, runner.commands[0])
}

func TestCommandUnpacker_ToolFails(t *testing.T) {
	runner := &fakeRunner{reply: func(string, []string) ([]byte, error) {
		return []byte("End-of-central-directory signature not found"), errors.New("exit status 9")
	}}

	_, err := NewCommandUnpacker(".app", runner).Unpack("/tmp/update.zip", t.TempDir())

	var unpackErr *UnpackError
	require.ErrorAs(t, err, &unpackErr)
	assert.True(t, strings.Contains(err.Error(), "End-of-central-directory"))
}

func TestSafeJoin(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")

	got, err := safeJoin(dest, "App.app/Contents")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "App.app", "Contents"), got)

	_, err = safeJoin(dest, "../../etc/passwd")
	assert.Error(t, err)
}
