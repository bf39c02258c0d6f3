// Package tui holds the tview pieces both players share.
package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rivo/tview"

	"m3uplay/internal/source"
)

// MessagePage is the page name ShowMessage uses.
const MessagePage = "message"

// Dispatcher queues work onto the tview event loop.
type Dispatcher struct {
	App *tview.Application
}

func (d Dispatcher) Dispatch(f func()) {
	d.App.QueueUpdateDraw(f)
}

// ShowMessage shows a dismissible modal over pages and gives focus back to
// restore when it is closed.
func ShowMessage(app *tview.Application, pages *tview.Pages, title, text string, restore tview.Primitive) {
	modal := tview.NewModal().
		SetText(title + "\n\n" + text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			pages.RemovePage(MessagePage)
			if restore != nil {
				app.SetFocus(restore)
			}
		})
	pages.AddPage(MessagePage, modal, false, true)
	app.SetFocus(modal)
}

// Fatal shows err in a modal on a fresh screen and exits with status 1 once
// it is dismissed.
func Fatal(title string, err error) {
	app := tview.NewApplication()
	modal := tview.NewModal().
		SetText(fmt.Sprintf("%s\n\n%v", title, err)).
		AddButtons([]string{"Quit"}).
		SetDoneFunc(func(int, string) { app.Stop() })
	if runErr := app.SetRoot(modal, true).Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", title, err)
	}
	os.Exit(1)
}

// LoadFailure is the user-facing wording for a failed playlist load.
type LoadFailure struct {
	Title  string
	Text   string
	Status string
}

// DescribeLoadError words err by category: file, timeout, HTTP status,
// network, decoding or invalid location.
func DescribeLoadError(location string, err error) LoadFailure {
	switch {
	case errors.Is(err, source.ErrInvalidLocation):
		return LoadFailure{"Invalid location", "Enter a playlist file path or an http(s) URL.\n" + err.Error(), "Load failed: invalid location"}
	case errors.Is(err, source.ErrFile):
		return LoadFailure{"File error", fmt.Sprintf("Could not load or parse file: %s\n%v", location, err), "Load failed"}
	case errors.Is(err, source.ErrTimeout):
		return LoadFailure{"Network error", "Timed out loading URL: " + location, "Load timed out"}
	case errors.Is(err, source.ErrHTTPStatus):
		return LoadFailure{"Network error", fmt.Sprintf("Server refused URL: %s\n%v", location, err), "Load failed: HTTP error"}
	case errors.Is(err, source.ErrNetwork):
		return LoadFailure{"Network error", fmt.Sprintf("Could not load URL: %s\n%v", location, err), "Load failed: network error"}
	case errors.Is(err, source.ErrTooLarge):
		return LoadFailure{"Content error", err.Error(), "Load failed: playlist too large"}
	case errors.Is(err, source.ErrDecode):
		return LoadFailure{"Content error", err.Error(), "Load failed: content decode error"}
	default:
		return LoadFailure{"Unknown error", fmt.Sprintf("Error while loading %s: %v", location, err), "Load failed: unknown error"}
	}
}

// FormatClock renders d as mm:ss; minutes wrap at an hour.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", (secs/60)%60, secs%60)
}

// ProgressBar draws a width-cell bar for pos within length.
func ProgressBar(pos, length time.Duration, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if length > 0 {
		if pos > length {
			pos = length
		}
		if pos > 0 {
			filled = int(int64(width) * int64(pos) / int64(length))
		}
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// VolumeBar is the status-line volume gauge.
func VolumeBar(percent int) string {
	return fmt.Sprintf("Vol %s %3d%%", ProgressBar(time.Duration(percent), 100, 10), percent)
}
