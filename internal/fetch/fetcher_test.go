package fetch

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/archive-hub/internal/cache"
)

var testything = map[string]string{
	"component.json": `{"name":"testything","version":"0.0.0"}`,
	"index.js":       "module.exports = 'testything'\n",
	"testything.css": ".testything{}\n",
	"lib/apples.js":  "\nmodule.exports = 'apples'\n",
}

func TestFetchExtractsIntoStaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stephenmathieson/testything/get/0.0.0.tar.gz", r.URL.Path)
		_, _ = w.Write(tarGz(t, "stephenmathieson-testything-abc123", testything))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{name}/get/{version}.tar.gz", Options{})
	staging := t.TempDir()
	key := cache.ArtifactKey{Owner: "stephenmathieson", Project: "testything", Version: "0.0.0"}

	require.NoError(t, f.Fetch(context.Background(), key, staging))

	for name, want := range testything {
		got, err := os.ReadFile(filepath.Join(staging, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}
}

func TestFetchNotFoundCarriesRepoAndVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not a gzip stream", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{name}/get/{version}.tar.gz", Options{})
	staging := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, os.MkdirAll(staging, 0o755))
	key := cache.ArtifactKey{Owner: "stephenmathieson", Project: "testything", Version: "notreal"}

	err := f.Fetch(context.Background(), key, staging)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNotFound, fe.Kind)
	assert.Equal(t, "stephenmathieson/testything", fe.Repo())
	assert.Equal(t, "notreal", fe.Version())
	assert.Equal(t, "404", fe.Code())
	assert.Regexp(t, `(?i)failed to fetch`, err.Error())
	assert.NotContains(t, err.Error(), "gzip")
	assert.True(t, IsNotFound(err))

	_, statErr := os.Stat(staging)
	assert.True(t, os.IsNotExist(statErr), "staging must be discarded on failure")
}

func TestFetchClassifiesTransferErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar.gz", Options{})
	key := cache.ArtifactKey{Owner: "o", Project: "p", Version: "1.0.0"}

	err := f.Fetch(context.Background(), key, t.TempDir())
	assert.Equal(t, KindTransfer, KindOf(err))
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "503", fe.Code())
	assert.Regexp(t, `(?i)failed to fetch`, err.Error())
}

func TestFetchUnreachableHostIsTransferError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	location := srv.URL + "/{owner}/{project}/{version}.tar.gz"
	srv.Close()

	f := newTestFetcher(t, location, Options{})
	err := f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, t.TempDir())
	assert.Equal(t, KindTransfer, KindOf(err))
	assert.False(t, IsNotFound(err))
}

func TestFetchCorruptArchiveIsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not gzip"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar.gz", Options{})
	staging := t.TempDir()
	err := f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, staging)

	assert.Equal(t, KindExtraction, KindOf(err))
	assert.Regexp(t, `failed to extract o/p@1`, err.Error())
	_, statErr := os.Stat(staging)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchDetectsCorruptGzipPayload(t *testing.T) {
	payload := tarBytes(t, "prefix", map[string]string{"index.js": "AAAAchecksum-guarded-payload"})
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.NoCompression)
	require.NoError(t, err)
	_, err = gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	// 未压缩的 deflate 块里内容原样可见，翻转一个字节只会被 CRC-32 发现。
	archive := buf.Bytes()
	at := bytes.Index(archive, []byte("AAAAchecksum"))
	require.GreaterOrEqual(t, at, 0)
	archive[at] = 'Z'

	assertCorruptArchiveRejected(t, ".tar.gz", archive)
}

func TestFetchDetectsCorruptZstdChecksum(t *testing.T) {
	payload := tarBytes(t, "prefix", map[string]string{"index.js": "zstd!"})
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderCRC(true))
	require.NoError(t, err)
	_, err = enc.Write(payload)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	// 帧末尾 4 字节是内容校验和，数据本身仍能正常解码。
	archive := buf.Bytes()
	archive[len(archive)-1] ^= 0xff

	assertCorruptArchiveRejected(t, ".tar.zst", archive)
}

func TestFetchRejectsArchiveEmptyAfterStripping(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "index.js", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2}))
	_, err := tw.Write([]byte("ok"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar", Options{})
	staging := t.TempDir()
	err = f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, staging)

	assert.Equal(t, KindExtraction, KindOf(err))
	assert.ErrorIs(t, err, errArchiveEmpty)
	assert.Contains(t, err.Error(), "after stripping 1 components")
	assert.NoDirExists(t, staging)
}

func TestFetchSendsBasicCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ci-bot" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(tarGz(t, "prefix", map[string]string{"index.js": "ok"}))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar.gz", Options{Username: "ci-bot", Password: "s3cret"})
	require.NoError(t, f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, t.TempDir()))
}

func TestFetchZstdArchive(t *testing.T) {
	payload := tarBytes(t, "prefix", map[string]string{"index.js": "zstd!"})
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(payload)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar.zst", Options{})
	staging := t.TempDir()
	require.NoError(t, f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, staging))

	got, err := os.ReadFile(filepath.Join(staging, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "zstd!", string(got))
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tarGz(t, "prefix", map[string]string{"big.bin": string(make([]byte, 4096))}))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}.tar.gz", Options{MaxArchiveBytes: 1024})
	err := f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, t.TempDir())
	assert.Equal(t, KindExtraction, KindOf(err))
	assert.ErrorIs(t, err, errArchiveTooLarge)
}

func TestTemplateExpandAndValidate(t *testing.T) {
	tpl := Template("https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz")
	require.NoError(t, tpl.Validate())
	assert.Equal(t,
		"https://bitbucket.org/o/p/get/feature%2Fx.tar.gz",
		tpl.Expand(cache.ArtifactKey{Owner: "o", Project: "p", Version: "feature/x"}))
	assert.Equal(t, FormatTarGzip, tpl.Format())
	assert.Equal(t, FormatTarZstd, Template("https://h/{owner}/{project}/{version}.tar.zst").Format())
	assert.Equal(t, FormatTar, Template("https://h/{owner}/{project}/{version}.tar").Format())

	assert.Error(t, Template("https://h/{owner}/{version}.tar.gz").Validate())
	assert.Error(t, Template("ftp://h/{owner}/{project}/{version}").Validate())
	assert.Error(t, Template("").Validate())
}

func TestStripComponents(t *testing.T) {
	assert.Equal(t, "lib/a.js", stripComponents("pkg-abc/lib/a.js", 1))
	assert.Equal(t, "", stripComponents("pkg-abc/", 1))
	assert.Equal(t, "pkg-abc/a.js", stripComponents("./pkg-abc/a.js", 0))
	assert.Equal(t, "a.js", stripComponents("pkg/../../a.js", 0))
}

func assertCorruptArchiveRejected(t *testing.T, suffix string, archive []byte) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/{owner}/{project}/{version}"+suffix, Options{})
	staging := t.TempDir()
	err := f.Fetch(context.Background(), cache.ArtifactKey{Owner: "o", Project: "p", Version: "1"}, staging)

	require.Error(t, err)
	assert.Equal(t, KindExtraction, KindOf(err))
	assert.Contains(t, err.Error(), "failed to extract o/p@1")
	assert.NoDirExists(t, staging)
}

func newTestFetcher(t *testing.T, location string, opts Options) *Fetcher {
	t.Helper()
	opts.Template = Template(location)
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.StripComponents == 0 {
		opts.StripComponents = 1
	}
	f, err := New(opts)
	require.NoError(t, err)
	return f
}

func tarGz(t *testing.T, prefix string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(tarBytes(t, prefix, files))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func tarBytes(t *testing.T, prefix string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: prefix + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     prefix + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}
