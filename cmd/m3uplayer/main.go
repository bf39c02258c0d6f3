package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"m3uplay/internal/app"
	"m3uplay/internal/config"
	"m3uplay/internal/player"
	"m3uplay/internal/playlist"
	"m3uplay/internal/tui"
	"m3uplay/sources/local"
	"m3uplay/sources/remote"
)

const appTitle = "M3U Player"

func main() {
	cmd := &cli.Command{
		Name:   "m3uplayer",
		Usage:  "play IPTV channels from an M3U playlist",
		Flags:  app.Flags(),
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	conf, log, err := app.Setup(c, "m3uplayer")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	inst, eng, err := app.StartEngine(ctx, conf, log)
	if err != nil {
		app.EngineFailed(log, err)
		tui.Fatal("Media engine error", err)
	}

	ui := newScreen(conf, log)
	ui.ctrl = player.New(inst, eng, ui, tui.Dispatcher{App: ui.app}, app.PlayerConfig(conf, appTitle), log)
	ui.volume = conf.InitialVolume

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ui.ctrl.Run(runCtx)

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		ui.app.QueueUpdate(ui.quit)
	}()

	log.Info("started")
	if err := ui.app.Run(); err != nil {
		ui.ctrl.Close()
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

type screen struct {
	app    *tview.Application
	ctrl   *player.Controller
	log    *zap.Logger
	loader *playlist.Loader
	conf   *config.Config

	pages      *tview.Pages
	root       *tview.Flex
	location   *tview.InputField
	filter     *tview.InputField
	channels   *tview.List
	nowView    *tview.TextView
	statusBar  *tview.TextView
	helpView   *tview.TextView
	focusables []tview.Primitive
	focusIdx   int

	// UI goroutine only
	list    *playlist.Playlist
	rows    []playlist.Match
	playing int // playlist index of the highlighted channel, -1 if none
	volume  int
	loading bool
}

func newScreen(conf *config.Config, log *zap.Logger) *screen {
	s := &screen{
		app:  tview.NewApplication(),
		log:  log,
		conf: conf,
		loader: playlist.NewLoader(log,
			remote.New(remote.WithTimeout(conf.FetchTimeout), remote.WithUserAgent(conf.UserAgent)),
			local.New(),
		),
		playing: -1,
	}

	s.location = tview.NewInputField()
	s.location.SetLabel(" Playlist: ")
	s.location.SetPlaceholder("path or http(s) URL, Enter to load")
	s.location.SetFieldWidth(0)
	s.location.SetFieldBackgroundColor(tcell.ColorDarkSlateGray)

	s.filter = tview.NewInputField()
	s.filter.SetLabel(" Filter: ")
	s.filter.SetFieldWidth(0)
	s.filter.SetFieldBackgroundColor(tcell.ColorDarkSlateGray)

	s.channels = tview.NewList().ShowSecondaryText(true)
	s.channels.SetBorder(true).SetTitle(" Channels [Enter=Play] ")
	s.channels.SetHighlightFullLine(true)
	s.channels.SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	s.nowView = tview.NewTextView()
	s.nowView.SetDynamicColors(true)
	s.nowView.SetBorder(true)
	s.nowView.SetTitle(" Now Playing ")
	s.nowView.SetText("[yellow]Nothing playing[-]\n\nLoad a playlist, pick a channel, press Enter")

	s.helpView = tview.NewTextView()
	s.helpView.SetDynamicColors(true)
	s.helpView.SetBorder(true)
	s.helpView.SetTitle(" Controls ")

	s.statusBar = tview.NewTextView()
	s.statusBar.SetDynamicColors(true)

	s.focusables = []tview.Primitive{s.location, s.filter, s.channels}

	inputs := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.location, 1, 0, true).
		AddItem(s.filter, 1, 0, false)

	leftPanel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(inputs, 3, 0, true).
		AddItem(s.channels, 0, 1, false)

	rightPanel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.nowView, 0, 1, false).
		AddItem(s.helpView, 8, 0, false)

	body := tview.NewFlex().
		AddItem(leftPanel, 0, 2, true).
		AddItem(rightPanel, 0, 1, false)

	s.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(s.statusBar, 1, 0, false)
	s.root.SetBorder(true).SetTitle(" " + appTitle + " ")

	s.pages = tview.NewPages().AddPage("main", s.root, true, true)
	s.app.SetRoot(s.pages, true).EnableMouse(true)
	s.app.SetFocus(s.location)

	s.SetControls(player.Controls{})
	s.SetStatus("Ready")
	s.renderList()
	s.setupHandlers()
	return s
}

func (s *screen) setupHandlers() {
	s.location.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			s.loadPlaylist(s.location.GetText())
		}
	})

	s.filter.SetChangedFunc(func(string) { s.renderList() })
	s.filter.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			s.focus(s.channels)
		}
	})

	s.channels.SetSelectedFunc(func(idx int, _, _ string, _ rune) {
		s.play(idx)
	})

	s.channels.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case ' ':
			s.ctrl.TogglePlayPause()
			return nil
		case 's', 'S':
			s.ctrl.Stop()
			return nil
		case '+', '=':
			s.changeVolume(5)
			return nil
		case '-', '_':
			s.changeVolume(-5)
			return nil
		case 'q', 'Q':
			s.quit()
			return nil
		}
		return event
	})

	// Inputs keep their runes; only focus and quit keys are global.
	s.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if s.pages.HasPage(tui.MessagePage) {
			return event
		}
		switch event.Key() {
		case tcell.KeyTab:
			s.nextFocus()
			return nil
		case tcell.KeyBacktab:
			s.prevFocus()
			return nil
		case tcell.KeyEsc:
			s.focus(s.channels)
			return nil
		case tcell.KeyCtrlC:
			s.quit()
			return nil
		}
		return event
	})
}

func (s *screen) focus(p tview.Primitive) {
	for i, f := range s.focusables {
		if f == p {
			s.focusIdx = i
		}
	}
	s.app.SetFocus(p)
}

func (s *screen) nextFocus() {
	s.focusIdx = (s.focusIdx + 1) % len(s.focusables)
	s.app.SetFocus(s.focusables[s.focusIdx])
}

func (s *screen) prevFocus() {
	s.focusIdx--
	if s.focusIdx < 0 {
		s.focusIdx = len(s.focusables) - 1
	}
	s.app.SetFocus(s.focusables[s.focusIdx])
}

// loadPlaylist fetches off the UI goroutine and swaps the list in when done.
func (s *screen) loadPlaylist(location string) {
	if s.loading {
		return
	}
	s.loading = true
	s.SetStatus("Loading playlist...")

	stopSpinner := make(chan struct{})
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopSpinner:
				return
			case <-ticker.C:
				frame := frames[i]
				s.app.QueueUpdateDraw(func() {
					if !s.loading {
						return
					}
					s.nowView.SetText(fmt.Sprintf("[yellow]%s Loading:[-]\n[white]%s[-]", frame, tview.Escape(location)))
				})
				i = (i + 1) % len(frames)
			}
		}
	}()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.conf.FetchTimeout)
		defer cancel()
		pl, err := s.loader.Load(ctx, location)
		close(stopSpinner)

		s.app.QueueUpdateDraw(func() { s.finishLoad(location, pl, err) })
	}()
}

// finishLoad applies a playlist load result on the UI goroutine. A failed
// load leaves the current list and playback alone.
func (s *screen) finishLoad(location string, pl *playlist.Playlist, err error) {
	s.loading = false
	if err != nil {
		f := tui.DescribeLoadError(location, err)
		s.log.Warn("playlist load failed", zap.String("location", location), zap.Error(err))
		s.nowView.SetText("[red]" + tview.Escape(f.Status) + "[-]")
		s.SetStatus(f.Status)
		tui.ShowMessage(s.app, s.pages, f.Title, f.Text, s.location)
		return
	}
	// the old list goes away, so does what was playing from it
	s.ctrl.Stop()
	s.list = pl
	s.playing = -1
	s.filter.SetText("")
	s.renderList()
	s.nowView.SetText(fmt.Sprintf("[green]✓ Loaded %d channels[-]\n\n%d groups\nUse [yellow]↑/↓[-] and [yellow]Enter[-] to play",
		pl.Count, len(pl.Groups())))
	s.SetStatus(fmt.Sprintf("Loaded %d channels", pl.Count))
	s.focus(s.channels)
}

// renderList rebuilds the channel list from the playlist and the filter.
func (s *screen) renderList() {
	s.channels.Clear()
	s.rows = nil
	if s.list != nil {
		s.rows = s.list.Search(s.filter.GetText())
	}
	if len(s.rows) == 0 {
		msg := "No channels loaded"
		if s.list != nil && s.list.Count > 0 {
			msg = "No channels match the filter"
		}
		s.channels.AddItem(msg, "", 0, nil)
		return
	}
	for i, m := range s.rows {
		s.channels.AddItem(s.rowText(i), secondary(m), 0, nil)
	}
}

func (s *screen) rowText(row int) string {
	m := s.rows[row]
	prefix := "  "
	if m.Index == s.playing {
		prefix = "► "
	}
	return prefix + tview.Escape(m.Channel.Name)
}

func secondary(m playlist.Match) string {
	return "    [gray]" + tview.Escape(m.Channel.Group+" | "+m.Channel.URL) + "[-]"
}

func (s *screen) play(row int) {
	if row < 0 || row >= len(s.rows) {
		return
	}
	ch := s.rows[row].Channel
	if err := s.ctrl.Load(row, ch); err != nil {
		tui.ShowMessage(s.app, s.pages, "Playback error", err.Error(), s.channels)
		return
	}
	logo := "none"
	if ch.HasLogo() {
		logo = ch.Logo
	}
	s.nowView.SetText(fmt.Sprintf("[green]♪ %s[-]\n\n[gray]Group:[-] %s\n[gray]URL:[-] %s\n[gray]Logo:[-] %s",
		tview.Escape(ch.Name), tview.Escape(ch.Group), tview.Escape(ch.URL), tview.Escape(logo)))
}

func (s *screen) changeVolume(delta int) {
	s.volume = s.ctrl.SetVolume(s.ctrl.Volume(s.volume) + delta)
	s.SetStatus(tui.VolumeBar(s.volume))
}

func (s *screen) quit() {
	s.ctrl.Close()
	s.app.Stop()
}

// player.View

func (s *screen) SetStatus(msg string) {
	s.statusBar.SetText(" " + tview.Escape(msg))
}

func (s *screen) SetTitle(title string) {
	s.root.SetTitle(" " + title + " ")
}

func (s *screen) SetControls(c player.Controls) {
	key := func(enabled bool, k, label string) string {
		if enabled {
			return fmt.Sprintf("[green]%s[-] %s", k, label)
		}
		return fmt.Sprintf("[gray]%s %s[-]", k, label)
	}
	playPause := "▶ Play"
	if c.Playing {
		playPause = "⏸ Pause"
	}
	s.helpView.SetText(
		key(true, "Enter", "Play selected") + "\n" +
			key(c.PlayPause, "Space", playPause) + "\n" +
			key(c.Stop, "s", "■ Stop") + "\n" +
			key(true, "+/-", "Volume") + "\n" +
			key(true, "Tab", "Next panel") + "   " + key(true, "q", "Quit"),
	)
}

func (s *screen) Highlight(row int) {
	old := s.playing
	s.playing = -1
	if row >= 0 && row < len(s.rows) {
		s.playing = s.rows[row].Index
	}
	for i, m := range s.rows {
		if m.Index == old || m.Index == s.playing {
			s.channels.SetItemText(i, s.rowText(i), secondary(m))
		}
	}
}
