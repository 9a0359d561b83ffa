package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

var errSurfaceClosed = errors.New("render surface is closed")

// BrowserOptions configures the headless browser behind RodSurface.
type BrowserOptions struct {
	Bin         string // Chrome binary; empty lets the launcher find or download one
	ControlURL  string // attach to an already running browser instead of launching
	Headless    bool
	Width       int
	Height      int
	PixelRatio  float64
	JPEGQuality int
}

// RodSurface draws reports into one reused headless Chrome page.
type RodSurface struct {
	mu      sync.Mutex
	opts    BrowserOptions
	browser *rod.Browser
	page    *rod.Page
	launch  *launcher.Launcher
	logger  *zap.Logger
}

// NewRodSurface connects to (or launches) Chrome and opens the report page.
func NewRodSurface(ctx context.Context, opts BrowserOptions, logger *zap.Logger) (*RodSurface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RodSurface{opts: opts, logger: logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		s.launch = launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			s.launch = s.launch.Bin(opts.Bin)
		}
		url, err := s.launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.killLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: opts.PixelRatio,
		Mobile:            false,
	}); err != nil {
		logger.Warn("failed to set viewport", zap.Error(err))
	}
	s.page = page

	logger.Info("render surface ready", zap.String("control_url", controlURL), zap.Float64("pixel_ratio", opts.PixelRatio))
	return s, nil
}

// Show replaces the page content and waits for it to load.
func (s *RodSurface) Show(ctx context.Context, html []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return errSurfaceClosed
	}
	page := s.page.Context(ctx)
	if err := page.SetDocumentContent(string(html)); err != nil {
		return fmt.Errorf("set report content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for report load: %w", err)
	}
	return nil
}

// Capture screenshots the report element as JPEG.
func (s *RodSurface) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, errSurfaceClosed
	}
	el, err := s.page.Context(ctx).Element(ReportElement)
	if err != nil {
		return nil, fmt.Errorf("find report element: %w", err)
	}
	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, s.opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("capture report: %w", err)
	}
	return img, nil
}

// Close shuts the page and the browser if this surface launched it.
func (s *RodSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.page != nil {
		err = s.page.Close()
		s.page = nil
	}
	if s.browser != nil && s.launch != nil {
		if cerr := s.browser.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.browser = nil
	s.killLauncher()
	return err
}

func (s *RodSurface) killLauncher() {
	if s.launch != nil {
		s.launch.Kill()
		s.launch = nil
	}
}
