package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SourceListView ViewState = iota
	ConfirmView
	ProgressView
	ResultView
)

// Downloader starts and cancels generations. [tasks.MediaFileDownloader] implements it.
type Downloader interface {
	Generate(ctx context.Context, req models.GenerationRequest, baseDir string, progress chan<- tasks.ProgressUpdate) (*tasks.Generation, error)
	Cancel(ctx context.Context) error
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	downloader Downloader
	req        models.GenerationRequest
	baseDir    string
	width      int
	height     int
	sources    list.Model
	spinner    spinner.Model
	progress   tasks.ProgressUpdate
	finished   int
	gen        *tasks.Generation
	updates    <-chan tasks.ProgressUpdate
	genDone    chan struct{}
	result     *models.GenerationResult
	cancelled  bool
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a TUI that generates req into baseDir with the given downloader.
func NewModel(ctx context.Context, d Downloader, req models.GenerationRequest, baseDir string) *Model {
	sources := list.New(sourceItems(req.Ordered(), sourceQueued), list.NewDefaultDelegate(), 0, 0)
	sources.Title = fmt.Sprintf("Playlist %s", req.ID)
	sources.SetShowHelp(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.spinner

	return &Model{
		ctx:        ctx,
		view:       SourceListView,
		downloader: d,
		req:        req,
		baseDir:    baseDir,
		sources:    sources,
		spinner:    sp,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Result returns the delivered result, if the generation finished.
func (m *Model) Result() (models.GenerationResult, bool) {
	if m.result == nil {
		return models.GenerationResult{}, false
	}
	return *m.result, true
}

// Cancelled reports whether the user stopped the generation.
func (m *Model) Cancelled() bool { return m.cancelled }

// Err returns the error that prevented the generation from starting.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sources.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SourceListView:
			return m.handleSourceListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ProgressView:
			return m.handleProgressKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != ProgressView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == SourceListView {
		m.sources, cmd = m.sources.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgGenerationStarted:
		data := msg.data.(startedData)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.gen = data.gen
		m.updates = data.progress
		m.genDone = make(chan struct{})
		return m, tea.Batch(m.spinner.Tick, waitForProgress(m.updates, m.genDone), waitForResult(m.gen))

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.applyProgress(update)
		return m, waitForProgress(m.updates, m.genDone)

	case MsgGenerationDone:
		data := msg.data.(doneData)
		if m.genDone != nil {
			close(m.genDone)
			m.genDone = nil
		}
		if data.cancelled {
			m.cancelled = true
			return m, tea.Quit
		}
		res := data.result
		m.result = &res
		m.markSkipped(res.Skipped)
		m.view = ResultView
		return m, nil

	case MsgGenerationCancelled:
		m.cancelled = true
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		return m, tea.Quit
	}
	return m, nil
}

// applyProgress records an update and refreshes the source list for finished fetches.
func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	m.progress = update

	switch update.Phase {
	case tasks.DownloadSources:
		m.setAll(sourceFetching)
	case tasks.SourceFinished:
		status, ok := update.Data.(tasks.SourceStatus)
		if !ok {
			return
		}
		m.finished = update.Step
		state := sourceDone
		if status.Err != nil {
			state = sourceFailed
		}
		m.setSource(status.Index, state, status.Err)
	}
}

func (m *Model) setAll(state sourceState) {
	for i, item := range m.sources.Items() {
		src := item.(sourceItem)
		src.state = state
		m.sources.SetItem(i, src)
	}
}

func (m *Model) setSource(index int, state sourceState, err error) {
	for i, item := range m.sources.Items() {
		src := item.(sourceItem)
		if src.source.Index == index {
			src.state = state
			src.err = err
			m.sources.SetItem(i, src)
			return
		}
	}
}

func (m *Model) markSkipped(skipped []int) {
	for _, index := range skipped {
		m.setSource(index, sourceFailed, nil)
	}
}

func (m *Model) handleSourceListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.start):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.sources, cmd = m.sources.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = SourceListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m, m.start()
	}
	return m, nil
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) {
		return m, m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		return m, m.start()
	}
	return m, nil
}

// start resets per-run state and asks the downloader for a new generation.
func (m *Model) start() tea.Cmd {
	m.view = ProgressView
	m.result = nil
	m.err = nil
	m.finished = 0
	m.progress = tasks.ProgressUpdate{}
	m.sources.SetItems(sourceItems(m.req.Ordered(), sourceQueued))

	ctx, d, req, baseDir := m.ctx, m.downloader, m.req, m.baseDir
	return func() tea.Msg {
		progress := make(chan tasks.ProgressUpdate, 64)
		gen, err := d.Generate(ctx, req, baseDir, progress)
		return generationStartedMsg(gen, progress, err)
	}
}

func (m *Model) cancel() tea.Cmd {
	ctx, d := m.ctx, m.downloader
	return func() tea.Msg {
		return generationCancelledMsg(d.Cancel(ctx))
	}
}

// waitForProgress delivers the next update, or nothing once the generation has ended.
func waitForProgress(updates <-chan tasks.ProgressUpdate, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-updates:
			return progressUpdateMsg(update)
		case <-done:
			return nil
		}
	}
}

func waitForResult(gen *tasks.Generation) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-gen.Done()
		return generationDoneMsg(res, !ok)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SourceListView:
		return m.renderSourceList()
	case ConfirmView:
		return m.renderConfirm()
	case ProgressView:
		return m.renderProgress()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderSourceList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.start, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.sources.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Generate media file for '%s'?", m.req.ID))
	info := fmt.Sprintf("\nSources: %d\nOutput: %s/%s\n", len(m.req.Sources), m.baseDir, m.req.ID)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderProgress() string {
	title := styles.title.Render(fmt.Sprintf("Generating %s", m.req.ID))

	var phase string
	switch m.progress.Phase {
	case tasks.CreateStaging:
		phase = "Preparing staging directory..."
	case tasks.DownloadSources, tasks.SourceFinished:
		phase = fmt.Sprintf("Downloading media files (%d/%d)", m.finished, len(m.req.Sources))
	case tasks.AssembleSources:
		phase = "Assembling unified media file..."
	default:
		phase = "Starting..."
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s %s\n%s\n\n%s\n\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message), m.sources.View(), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Could not start generation: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	res := *m.result
	if !res.Succeeded() {
		return styles.err.Render(fmt.Sprintf("✗ Generation failed: %v", res.Err)) + "\n\n" + helpView
	}

	var b strings.Builder
	if res.Partial {
		b.WriteString(styles.warn.Render("✓ Generated with skipped sources"))
	} else {
		b.WriteString(styles.ok.Render("✓ Generation complete"))
	}
	b.WriteString("\n\n")
	if res.Path == "" {
		b.WriteString("No sources to assemble\n")
	} else {
		b.WriteString(fmt.Sprintf("Media file: %s\nSize: %s\n", res.Path, shared.FormatBytes(res.Bytes)))
	}
	b.WriteString(fmt.Sprintf("Sources: %d of %d\n", res.Sources-len(res.Skipped), res.Sources))
	if res.Partial {
		b.WriteString(styles.warn.Render(fmt.Sprintf("Skipped: %v", res.Skipped)))
		b.WriteString("\n")
	}

	return fmt.Sprintf("%s\n%s", b.String(), helpView)
}
