package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/any-hub/archive-hub/internal/cache"
)

// DefaultMaxArchiveBytes 限制单个归档解压后的总大小。
const DefaultMaxArchiveBytes int64 = 512 << 20

// Options 描述 Fetcher 的上游模板、凭证与解包参数。
type Options struct {
	Template        Template
	Client          *http.Client
	Username        string
	Password        string
	UserAgent       string
	StripComponents int
	MaxArchiveBytes int64
}

// Fetcher 负责“展开模板 → GET → 解压 → 解包到 staging”，并对失败进行分类。
type Fetcher struct {
	template  Template
	client    *http.Client
	username  string
	password  string
	userAgent string
	extract   extractOptions
}

// New validates opts and builds a Fetcher.
func New(opts Options) (*Fetcher, error) {
	if err := opts.Template.Validate(); err != nil {
		return nil, err
	}
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	strip := opts.StripComponents
	if strip < 0 {
		strip = 0
	}
	maxBytes := opts.MaxArchiveBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxArchiveBytes
	}
	return &Fetcher{
		template:  opts.Template,
		client:    opts.Client,
		username:  opts.Username,
		password:  opts.Password,
		userAgent: opts.UserAgent,
		extract: extractOptions{
			format:          opts.Template.Format(),
			stripComponents: strip,
			maxBytes:        maxBytes,
		},
	}, nil
}

// Location 返回 key 对应的上游地址。
func (f *Fetcher) Location(key cache.ArtifactKey) string {
	return f.template.Expand(key)
}

// Fetch downloads the archive for key and unpacks it into staging. On failure
// staging is removed and the returned error is a *Error.
func (f *Fetcher) Fetch(ctx context.Context, key cache.ArtifactKey, staging string) error {
	if err := f.fetch(ctx, key, staging); err != nil {
		if cleanupErr := os.RemoveAll(staging); cleanupErr != nil {
			err.Cause = multierror.Append(err.Cause, fmt.Errorf("discard staging: %w", cleanupErr))
		}
		return err
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, key cache.ArtifactKey, staging string) *Error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Location(key), http.NoBody)
	if err != nil {
		return transferError(key, 0, err)
	}
	if f.username != "" && f.password != "" {
		req.SetBasicAuth(f.username, f.password)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return transferError(key, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound(key, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return transferError(key, resp.StatusCode, nil)
	}

	body := &trackingReader{r: resp.Body}
	if err := extract(ctx, body, staging, f.extract); err != nil {
		// 网络读失败或取消属于传输问题；字节完整但解压/解包失败才算 extraction。
		if body.err != nil {
			return transferError(key, resp.StatusCode, body.err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transferError(key, resp.StatusCode, ctxErr)
		}
		return extractionError(key, err)
	}
	return nil
}

// trackingReader 记录底层 body 的非 EOF 读错误，用于区分传输失败与归档损坏。
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
