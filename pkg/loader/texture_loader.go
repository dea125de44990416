package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/taigrr/texcube/pkg/render"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Option sets per-load callbacks.
type Option func(*callbacks)

type callbacks struct {
	onLoad     func(*render.Texture)
	onProgress func(read, total int64)
	onError    func(error)
}

// OnLoad is called after the texture has been populated.
func OnLoad(fn func(*render.Texture)) Option {
	return func(c *callbacks) { c.onLoad = fn }
}

// OnProgress is called as bytes arrive. total is -1 when unknown.
func OnProgress(fn func(read, total int64)) Option {
	return func(c *callbacks) { c.onProgress = fn }
}

// OnError is called when the load fails.
func OnError(fn func(error)) Option {
	return func(c *callbacks) { c.onError = fn }
}

// TextureLoader creates texture handles and fills them in the background.
type TextureLoader struct {
	manager *LoadingManager
	ctx     context.Context
	client  *http.Client
	base    string
	logger  *slog.Logger
}

// LoaderOption configures a TextureLoader.
type LoaderOption func(*TextureLoader)

// WithBaseDir resolves relative paths against dir, a directory or URL.
func WithBaseDir(dir string) LoaderOption {
	return func(l *TextureLoader) { l.base = dir }
}

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *TextureLoader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithContext bounds every load; cancelling ctx fails loads that have not
// finished.
func WithContext(ctx context.Context) LoaderOption {
	return func(l *TextureLoader) {
		if ctx != nil {
			l.ctx = ctx
		}
	}
}

// WithLoaderLogger sets the logger for decode diagnostics.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *TextureLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewTextureLoader creates a loader tracked by manager. A nil manager gets a
// private one.
func NewTextureLoader(manager *LoadingManager, opts ...LoaderOption) *TextureLoader {
	if manager == nil {
		manager = NewLoadingManager()
	}
	l := &TextureLoader{
		manager: manager,
		ctx:     context.Background(),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Manager returns the manager tracking this loader's items.
func (l *TextureLoader) Manager() *LoadingManager {
	return l.manager
}

// Load returns an empty texture immediately and populates it in the
// background. Failures leave the texture empty; see Texture.Err.
func (l *TextureLoader) Load(path string, opts ...Option) *render.Texture {
	var cb callbacks
	for _, opt := range opts {
		opt(&cb)
	}

	src := resolve(l.base, path)
	tex := render.NewTexture()
	tex.Name = path

	l.manager.itemStart(src)
	go l.fetch(src, tex, cb)
	return tex
}

func (l *TextureLoader) fetch(src string, tex *render.Texture, cb callbacks) {
	img, err := l.read(src, cb.onProgress)
	if err != nil {
		tex.Fail(err)
		if cb.onError != nil {
			cb.onError(err)
		}
		l.manager.itemError(src, err)
		l.manager.itemEnd(src)
		return
	}

	tex.SetImage(img)
	l.logger.Debug("texture decoded", "url", src, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	if cb.onLoad != nil {
		cb.onLoad(tex)
	}
	l.manager.itemEnd(src)
}

func (l *TextureLoader) read(src string, progress func(read, total int64)) (image.Image, error) {
	if err := l.manager.acquire(l.ctx); err != nil {
		return nil, fmt.Errorf("wait for fetch slot: %w", err)
	}
	defer l.manager.release()

	o, err := open(l.ctx, l.client, src)
	if err != nil {
		return nil, err
	}
	defer o.r.Close()

	var r io.Reader = o.r
	if progress != nil {
		r = &progressReader{r: o.r, total: o.size, fn: progress}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	l.logger.Debug("texture format", "url", src, "format", format)
	return img, nil
}
