package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tcell "github.com/gdamore/tcell/v2"
	tview "github.com/rivo/tview"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"m3uplay/internal/app"
	"m3uplay/internal/m3u"
	"m3uplay/internal/player"
	"m3uplay/internal/tui"
)

const appTitle = "Media Player"

func main() {
	cmd := &cli.Command{
		Name:   "mediaplayer",
		Usage:  "play a local audio or video file",
		Flags:  app.Flags(),
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// view adapts the mediaplayer widgets to player.View.
type view struct {
	root     *tview.Flex
	status   *tview.TextView
	controls *tview.TextView
}

func (v *view) SetStatus(msg string) { v.status.SetText(" " + tview.Escape(msg)) }

func (v *view) SetTitle(title string) { v.root.SetTitle(" " + title + " ") }

func (v *view) SetControls(c player.Controls) {
	glyph := "▶ Play"
	if c.Playing {
		glyph = "⏸ Pause"
	}
	color := func(on bool) string {
		if on {
			return "green"
		}
		return "gray"
	}
	v.controls.SetText(fmt.Sprintf("[%s]Space %s[-]  [%s]s ■ Stop[-]  [%s]←/→ Seek 5s[-]  [green]Tab[-] Focus  [green]q[-] Quit",
		color(c.PlayPause), glyph, color(c.Stop), color(c.PlayPause)))
}

// Highlight is a no-op: there is no list.
func (v *view) Highlight(int) {}

func run(ctx context.Context, c *cli.Command) error {
	conf, log, err := app.Setup(c, "mediaplayer")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	inst, eng, err := app.StartEngine(ctx, conf, log)
	if err != nil {
		app.EngineFailed(log, err)
		tui.Fatal("Media engine error", err)
	}

	tapp := tview.NewApplication()

	path := tview.NewInputField().SetLabel(" File: ")
	path.SetFieldWidth(0)
	path.SetPlaceholder("path to an audio or video file, Enter to play")
	path.SetFieldBackgroundColor(tcell.ColorDarkSlateGray)

	now := tview.NewTextView()
	now.SetDynamicColors(true)
	now.SetBorder(true)
	now.SetTitle(" Now Playing ")
	now.SetText("[yellow]Nothing playing[-]")

	progress := tview.NewTextView()
	progress.SetDynamicColors(true)
	progress.SetBorder(true)
	progress.SetTitle(" Progress ")

	v := &view{
		status:   tview.NewTextView().SetDynamicColors(true),
		controls: tview.NewTextView().SetDynamicColors(true),
	}
	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(path, 1, 0, true).
		AddItem(now, 0, 1, false).
		AddItem(progress, 3, 0, false).
		AddItem(v.controls, 1, 0, false).
		AddItem(v.status, 1, 0, false)
	v.root.SetBorder(true).SetTitle(" " + appTitle + " ")

	pages := tview.NewPages().AddPage("main", v.root, true, true)
	tapp.SetRoot(pages, true).EnableMouse(true)

	ctrl := player.New(inst, eng, v, tui.Dispatcher{App: tapp}, app.PlayerConfig(conf, appTitle), log)
	v.SetControls(player.Controls{})
	v.SetStatus("Ready")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctrl.Run(runCtx)

	// redraw the progress bar while playing
	drawProgress := func() {
		pos, length := ctrl.Progress()
		_, _, width, _ := progress.GetInnerRect()
		width -= 16
		if width < 10 {
			width = 10
		}
		progress.SetText(fmt.Sprintf("%s %s %s", tui.FormatClock(pos), tui.ProgressBar(pos, length, width), tui.FormatClock(length)))
	}
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				tapp.QueueUpdateDraw(func() {
					if ctrl.Playing() {
						drawProgress()
					}
				})
			}
		}
	}()

	play := func(file string) {
		file = strings.TrimSpace(file)
		if file == "" {
			return
		}
		if fi, err := os.Stat(file); err != nil || fi.IsDir() {
			if err == nil {
				err = fmt.Errorf("%s is a directory", file)
			}
			tui.ShowMessage(tapp, pages, "File error", err.Error(), path)
			return
		}
		name := filepath.Base(file)
		if err := ctrl.Load(-1, m3u.Channel{Name: name, URL: file}); err != nil {
			tui.ShowMessage(tapp, pages, "Playback error", err.Error(), path)
			return
		}
		now.SetText(fmt.Sprintf("[green]♪ %s[-]\n[gray]%s[-]", tview.Escape(name), tview.Escape(file)))
		progress.SetText("")
		tapp.SetFocus(now)
	}

	seek := func(delta time.Duration) {
		if err := ctrl.SeekBy(delta); err != nil {
			log.Debug("seek ignored", zap.Error(err))
			return
		}
		drawProgress()
	}

	quit := func() {
		if ctrl.Playing() {
			tui.ShowMessage(tapp, pages, "Still playing", "Stop playback before quitting.", tapp.GetFocus())
			return
		}
		ctrl.Close()
		tapp.Stop()
	}

	path.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			play(path.GetText())
		}
	})

	tapp.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if pages.HasPage(tui.MessagePage) {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyTab, tcell.KeyBacktab:
			if tapp.GetFocus() == path {
				tapp.SetFocus(now)
			} else {
				tapp.SetFocus(path)
			}
			return nil
		case tcell.KeyCtrlC:
			quit()
			return nil
		}
		// the path field keeps its keys
		if tapp.GetFocus() == path {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyLeft:
			seek(-5 * time.Second)
			return nil
		case tcell.KeyRight:
			seek(5 * time.Second)
			return nil
		}
		switch ev.Rune() {
		case ' ':
			ctrl.TogglePlayPause()
			return nil
		case 's', 'S':
			ctrl.Stop()
			progress.SetText("")
			return nil
		case 'q', 'Q':
			quit()
			return nil
		}
		return ev
	})

	log.Info("started")
	if err := tapp.Run(); err != nil {
		ctrl.Close()
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
