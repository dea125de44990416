package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taigrr/texcube/pkg/models"
)

var (
	// ErrUnsupportedSource is returned for URL schemes the loader cannot fetch.
	ErrUnsupportedSource = errors.New("unsupported texture source")
	// ErrNoEmbeddedImage is returned when a glTF file has no image at the
	// requested index.
	ErrNoEmbeddedImage = errors.New("no embedded image")
)

// opened is a source ready to be read. size is -1 when unknown.
type opened struct {
	r    io.ReadCloser
	size int64
}

// resolve joins a relative path onto base, which may be a directory or a URL.
func resolve(base, path string) string {
	if base == "" || isURL(path) || filepath.IsAbs(path) {
		return path
	}
	if isURL(base) {
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	return filepath.Join(base, path)
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

// embeddedRef splits "model.glb#2" into the file and image index.
func embeddedRef(src string) (path string, index int, ok bool) {
	i := strings.LastIndexByte(src, '#')
	if i < 0 {
		return "", 0, false
	}
	ext := strings.ToLower(filepath.Ext(src[:i]))
	if ext != ".glb" && ext != ".gltf" {
		return "", 0, false
	}
	n, err := strconv.Atoi(src[i+1:])
	if err != nil {
		return "", 0, false
	}
	return src[:i], n, true
}

// open returns a reader for a local file, an http(s) URL or an image
// embedded in a glTF document.
func open(ctx context.Context, client *http.Client, src string) (opened, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return openHTTP(ctx, client, src)
	case strings.HasPrefix(src, "file://"):
		return openFile(strings.TrimPrefix(src, "file://"))
	case isURL(src):
		return opened{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}

	if path, index, ok := embeddedRef(src); ok {
		data, _, err := models.ReadImage(path, index)
		if errors.Is(err, models.ErrNoImage) {
			return opened{}, fmt.Errorf("%w: %s", ErrNoEmbeddedImage, src)
		}
		if err != nil {
			return opened{}, fmt.Errorf("read embedded image: %w", err)
		}
		return opened{r: io.NopCloser(bytes.NewReader(data)), size: int64(len(data))}, nil
	}

	return openFile(src)
}

func openFile(path string) (opened, error) {
	f, err := os.Open(path)
	if err != nil {
		return opened{}, fmt.Errorf("open texture: %w", err)
	}
	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return opened{r: f, size: size}, nil
}

func openHTTP(ctx context.Context, client *http.Client, url string) (opened, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return opened{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return opened{}, fmt.Errorf("fetch texture: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return opened{}, fmt.Errorf("fetch texture: %s: %s", url, resp.Status)
	}
	return opened{r: resp.Body, size: resp.ContentLength}, nil
}

// progressReader reports bytes read so far.
type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	fn    func(read, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			p.fn(p.read, p.total)
		}
	}
	return n, err
}
