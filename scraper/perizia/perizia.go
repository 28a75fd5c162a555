package perizia

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// ErrDocumentNotFound is returned when no appraisal text exists for a record.
var ErrDocumentNotFound = errors.New("appraisal document not found")

// Source returns the appraisal (perizia) text for an auction record.
type Source interface {
	Text(ctx context.Context, rec models.AuctionRecord) (string, error)
}

// Truncate cuts s to at most n runes. n <= 0 leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FileSource reads <dir>/<id>.txt.
type FileSource struct {
	dir      string
	maxChars int
}

func NewFileSource(dir string, maxChars int) *FileSource {
	return &FileSource{dir: dir, maxChars: maxChars}
}

func (f *FileSource) Text(_ context.Context, rec models.AuctionRecord) (string, error) {
	if rec.ID == "" || strings.ContainsAny(rec.ID, `/\`) || rec.ID == "." || rec.ID == ".." {
		return "", fmt.Errorf("perizia: invalid id %q: %w", rec.ID, ErrDocumentNotFound)
	}
	path := filepath.Join(f.dir, rec.ID+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("perizia: %s: %w", path, ErrDocumentNotFound)
		}
		return "", fmt.Errorf("perizia: read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("perizia: %s is empty: %w", path, ErrDocumentNotFound)
	}
	return Truncate(text, f.maxChars), nil
}

// BrowserSource renders the listing page in headless Chrome and returns its
// visible text. The browser is started on first use.
type BrowserSource struct {
	chromeBin string
	maxChars  int
	retry     *utils.RetryConfig
	logger    *utils.Logger

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

func NewBrowserSource(chromeBin string, maxChars int, retry *utils.RetryConfig, logger *utils.Logger) *BrowserSource {
	return &BrowserSource{chromeBin: chromeBin, maxChars: maxChars, retry: retry, logger: logger}
}

func (b *BrowserSource) start() {
	bin := b.chromeBin
	if bin == "" {
		bin = findChromeBinary()
	}
	b.logger.Info("[perizia] Using browser binary: %s", bin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.allocCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelCtx = cancelCtx
}

func (b *BrowserSource) Text(ctx context.Context, rec models.AuctionRecord) (string, error) {
	if rec.URL == "" {
		return "", fmt.Errorf("perizia: record %s has no url: %w", rec.ID, ErrDocumentNotFound)
	}
	b.once.Do(b.start)

	var text string
	err := b.retry.Do(ctx, "perizia-page-"+rec.ID, func(ctx context.Context) error {
		tabCtx, cancel := chromedp.NewContext(b.allocCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
		defer cancelTimeout()

		// Follow the caller's cancellation as well as the tab timeout.
		stop := context.AfterFunc(ctx, cancelTimeout)
		defer stop()

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(rec.URL),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(`
				(function() {
					var main = document.querySelector('main') ||
					           document.querySelector('article') ||
					           document.body;
					return main ? main.innerText.trim() : '';
				})()
			`, &text),
		)
		if err != nil {
			return fmt.Errorf("chromedp page text: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("perizia: %s: %w", rec.URL, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("perizia: %s rendered no text: %w", rec.URL, ErrDocumentNotFound)
	}
	return Truncate(text, b.maxChars), nil
}

// Close shuts the browser down if it was started.
func (b *BrowserSource) Close() {
	if b.cancelCtx != nil {
		b.cancelCtx()
		b.cancelAlloc()
	}
}

// ChainSource tries each source in order and returns the first text found.
type ChainSource []Source

func (c ChainSource) Text(ctx context.Context, rec models.AuctionRecord) (string, error) {
	var errs []error
	for _, src := range c {
		text, err := src.Text(ctx, rec)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("perizia: no sources for %s: %w", rec.ID, ErrDocumentNotFound)
	}
	return "", errors.Join(errs...)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
