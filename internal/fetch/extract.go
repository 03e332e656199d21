package fetch

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	// errArchiveTooLarge 表示解压后的总字节数超过 MaxArchiveBytes。
	errArchiveTooLarge = errors.New("archive exceeds size limit")
	// errArchiveEmpty 表示去掉前缀目录后没有任何文件或目录落盘。
	errArchiveEmpty = errors.New("archive produced no files")
)

// extractOptions 控制解包行为。
type extractOptions struct {
	format          Format
	stripComponents int
	maxBytes        int64
}

// extract 将压缩的 tar 流解包到 dir，所有路径都经过 securejoin 限定在 dir 内。
func extract(ctx context.Context, input io.Reader, dir string, opts extractOptions) error {
	stream, closeFn, err := decompress(input, opts.format)
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	var (
		written  int64
		produced int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			// tar 结束标记之后还有 gzip 尾部 CRC/ISIZE 或 zstd 帧校验和，必须读到底才会校验。
			if _, err := io.Copy(io.Discard, stream); err != nil {
				return fmt.Errorf("verify archive: %w", err)
			}
			if produced == 0 {
				return fmt.Errorf("%w after stripping %d components", errArchiveEmpty, opts.stripComponents)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name := stripComponents(hdr.Name, opts.stripComponents)
		if name == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := securejoin.SecureJoin(dir, name)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", hdr.Name, err)
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			produced++
		case tar.TypeReg:
			if opts.maxBytes > 0 && written+hdr.Size > opts.maxBytes {
				return fmt.Errorf("%w: %d bytes", errArchiveTooLarge, opts.maxBytes)
			}
			target, err := securejoin.SecureJoin(dir, name)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", hdr.Name, err)
			}
			n, err := writeFile(tr, target, hdr.FileInfo().Mode())
			written += n
			if err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			produced++
		default:
			// 链接、设备文件与 pax 全局头不落盘。
		}
	}
}

func decompress(input io.Reader, format Format) (io.Reader, func(), error) {
	switch format {
	case FormatTar:
		return input, func() {}, nil
	case FormatTarZstd:
		dec, err := zstd.NewReader(input, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	default:
		gz, err := gzip.NewReader(input)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	}
}

func writeFile(src io.Reader, target string, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	perm := os.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	return n, err
}

// stripComponents 去掉前 n 级目录（对应 tar --strip-components），不足 n 级时返回空串。
func stripComponents(name string, n int) string {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "" {
		return ""
	}
	if n <= 0 {
		return clean
	}
	parts := strings.Split(clean, "/")
	if len(parts) <= n {
		return ""
	}
	return strings.Join(parts[n:], "/")
}
