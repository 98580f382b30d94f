package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodOptions configures a browser session.
type RodOptions struct {
	Headless    bool
	UserDataDir string // empty means a throwaway profile

	// NavigateTimeout bounds page loads; LocateTimeout bounds element
	// lookup; ActionTimeout bounds a single DOM action. Zero picks the
	// default.
	NavigateTimeout time.Duration
	LocateTimeout   time.Duration
	ActionTimeout   time.Duration
}

const (
	defaultNavigateTimeout = 15 * time.Second
	defaultLocateTimeout   = 5 * time.Second
	defaultActionTimeout   = 5 * time.Second
)

// RodDriver drives a real Chromium instance through go-rod. One driver is
// one browser session; it is not safe for concurrent use.
type RodDriver struct {
	browser *rod.Browser
	page    *rod.Page
	opts    RodOptions
}

// rodRef wraps a located rod element.
type rodRef struct {
	el   *rod.Element
	desc string
}

func (r *rodRef) Describe() string { return r.desc }

// NewRod launches a stealth browser session. The context bounds the
// session lifetime, not just the launch.
func NewRod(ctx context.Context, opts RodOptions) (*RodDriver, error) {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = defaultNavigateTimeout
	}
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = defaultLocateTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}

	launch := launcher.New().
		Leakless(true).
		Headless(opts.Headless)
	if opts.UserDataDir != "" {
		launch = launch.UserDataDir(opts.UserDataDir)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	scale := 1.0
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
		Scale:  &scale,
		Mobile: false,
	}); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &RodDriver{browser: browser, page: page, opts: opts}, nil
}

// Close shuts the browser down.
func (d *RodDriver) Close() error {
	if d.browser == nil {
		return nil
	}
	return d.browser.Close()
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, d.opts.NavigateTimeout)
	defer cancel()

	page := d.page.Context(nctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Load completion is best effort; single-page apps often never fire it.
	_ = page.WaitLoad()
	return nil
}

func (d *RodDriver) LocateBySemanticText(ctx context.Context, text, containerHint string) (ElementRef, error) {
	lctx, cancel := context.WithTimeout(ctx, d.opts.LocateTimeout)
	defer cancel()
	page := d.page.Context(lctx)

	res, err := page.Eval(markBySemanticText, text, containerHint)
	if err != nil {
		return nil, fmt.Errorf("semantic lookup: %w", err)
	}
	switch n := res.Value.Int(); {
	case n == 0:
		return nil, ErrNotFound
	case n > 1:
		return nil, ErrAmbiguous
	}

	el, err := page.Element("[data-webrun-target]")
	if err != nil {
		return nil, fmt.Errorf("fetch marked element: %w", err)
	}
	return &rodRef{el: el, desc: fmt.Sprintf("text=%q", text)}, nil
}

func (d *RodDriver) LocateByFingerprint(ctx context.Context, fingerprint string) (ElementRef, error) {
	lctx, cancel := context.WithTimeout(ctx, d.opts.LocateTimeout)
	defer cancel()
	page := d.page.Context(lctx)

	res, err := page.Eval(markByFingerprint, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if res.Value.Int() == 0 {
		return nil, ErrNotFound
	}

	el, err := page.Element("[data-webrun-target]")
	if err != nil {
		return nil, fmt.Errorf("fetch marked element: %w", err)
	}
	return &rodRef{el: el, desc: fmt.Sprintf("fingerprint=%s", fingerprint)}, nil
}

func (d *RodDriver) PerformAction(ctx context.Context, ref ElementRef, kind ActionKind, value string) error {
	rr, ok := ref.(*rodRef)
	if !ok {
		return fmt.Errorf("foreign element ref %T", ref)
	}
	actx, cancel := context.WithTimeout(ctx, d.opts.ActionTimeout)
	defer cancel()
	el := rr.el.Context(actx)

	switch kind {
	case ActionClick:
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			if _, jsErr := el.Eval(forceClick); jsErr != nil {
				return fmt.Errorf("click %s: %w", ref.Describe(), err)
			}
		}
		return nil

	case ActionInput:
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		if err := el.Input(value); err != nil {
			return fmt.Errorf("type into %s: %w", ref.Describe(), err)
		}
		return nil

	case ActionKeypress:
		key, err := keyFor(value)
		if err != nil {
			return err
		}
		if err := el.Type(key); err != nil {
			return fmt.Errorf("press %s on %s: %w", value, ref.Describe(), err)
		}
		return nil

	case ActionSelect:
		if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
			return fmt.Errorf("select %q in %s: %w", value, ref.Describe(), err)
		}
		return nil
	}
	return fmt.Errorf("unknown action kind %q", kind)
}

func (d *RodDriver) Extract(ctx context.Context, goal string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, d.opts.ActionTimeout)
	defer cancel()
	page := d.page.Context(actx)

	// Give late-rendering content a moment before reading.
	_ = page.WaitStable(300 * time.Millisecond)

	res, err := page.Eval(pageText)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}
	text := res.Value.String()
	const limit = 20000
	if len(text) > limit {
		text = text[:limit] + "...(truncated)"
	}
	return text, nil
}

// Screenshot captures the current viewport as PNG.
func (d *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, d.opts.ActionTimeout)
	defer cancel()

	data, err := d.page.Context(actx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}

// keyFor maps a recorded key name to a rod key. Names are the recorder's,
// matched case-insensitively.
func keyFor(name string) (input.Key, error) {
	switch strings.ToLower(name) {
	case "enter":
		return input.Enter, nil
	case "escape":
		return input.Escape, nil
	case "tab":
		return input.Tab, nil
	case "backspace":
		return input.Backspace, nil
	case "space":
		return input.Space, nil
	case "arrowdown", "arrow_down":
		return input.ArrowDown, nil
	case "arrowup", "arrow_up":
		return input.ArrowUp, nil
	case "arrowleft", "arrow_left":
		return input.ArrowLeft, nil
	case "arrowright", "arrow_right":
		return input.ArrowRight, nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}
