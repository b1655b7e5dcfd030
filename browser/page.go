package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Page is the low-level interaction surface the action executor drives.
// Session implements it with chromedp; tests substitute a fake.
type Page interface {
	// Fill sets the element's text content.
	Fill(ctx context.Context, selector, value string) error
	// Click performs a standard, actionability-checked click.
	Click(ctx context.Context, selector string) error
	// ForceClick clicks through overlays, bypassing visibility checks.
	ForceClick(ctx context.Context, selector string) error
	// Press dispatches a keyboard key against the page, not an element.
	Press(ctx context.Context, key string) error
	// Upload attaches files to the element's file-input control.
	Upload(ctx context.Context, selector string, files []string) error
}

const clickTimeout = 5 * time.Second

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	return chromedp.Run(s.ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(s.ctx, clickTimeout)
	defer cancel()
	return chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery))
}

// ForceClick dispatches a DOM click directly, skipping chromedp's
// visibility/actionability waits. Used as the retry path when a standard
// click fails under an overlay.
func (s *Session) ForceClick(ctx context.Context, selector string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, sel)

	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("force click: no element matches %s", selector)
	}
	return nil
}

func (s *Session) Press(ctx context.Context, key string) error {
	return chromedp.Run(s.ctx, chromedp.KeyEvent(keyChord(key)))
}

// keyChord maps the key names the model emits onto chromedp key runes.
func keyChord(key string) string {
	switch key {
	case "Enter", "enter", "Return":
		return kb.Enter
	case "Tab", "tab":
		return kb.Tab
	case "Escape", "escape", "Esc":
		return kb.Escape
	case "Backspace":
		return kb.Backspace
	case "ArrowDown":
		return kb.ArrowDown
	case "ArrowUp":
		return kb.ArrowUp
	default:
		return key
	}
}

func (s *Session) Upload(ctx context.Context, selector string, files []string) error {
	upCtx, cancel := context.WithTimeout(s.ctx, clickTimeout)
	defer cancel()
	return chromedp.Run(upCtx, chromedp.SetUploadFiles(selector, files, chromedp.ByQuery))
}
