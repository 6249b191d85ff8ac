package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CsvfileListView ViewState = iota
	ConfirmView
	UploadView
	ResultView
)

// CsvfileLister loads the csvfiles a user can upload into. Implemented by the csvfile repository.
type CsvfileLister interface {
	List(ctx context.Context, criteria map[string]any) ([]*models.Csvfile, error)
}

// UploadFunc stores source as csvfile's file and converts its rows, reporting through progress.
type UploadFunc func(ctx context.Context, csvfile *models.Csvfile, progress chan<- tasks.ProgressUpdate) (*tasks.UploadResult, error)

// Options configures a [Model].
type Options struct {
	UserID   string
	Source   string // path of the CSV being uploaded, for display
	Csvfiles CsvfileLister
	Upload   UploadFunc
	Selected string // csvfile ID that skips the list and opens the confirmation
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	opts        Options
	view        ViewState
	width       int
	height      int
	csvfileList list.Model
	selected    *models.Csvfile
	wait        tea.Cmd // receives the next progress or completion message
	progress    tasks.ProgressUpdate
	bar         progress.Model
	spinner     spinner.Model
	result      *tasks.UploadResult
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	return &Model{
		ctx:         ctx,
		opts:        opts,
		view:        CsvfileListView,
		csvfileList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init initializes the TUI by fetching the user's csvfiles.
func (m *Model) Init() tea.Cmd {
	return m.fetchCsvfiles()
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}

// Result returns the finished upload, nil until one completes.
func (m *Model) Result() *tasks.UploadResult {
	return m.result
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.csvfileList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CsvfileListView:
			return m.handleListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case UploadView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != UploadView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCsvfilesFetched:
		data := msg.data.(csvfilesFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.csvfiles))
		for i, c := range data.csvfiles {
			items[i] = csvfileItem{csvfile: c}
			if c.ID() == m.opts.Selected {
				m.selected = c
			}
		}
		m.csvfileList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
		m.csvfileList.Title = "Upload " + m.opts.Source + " into"

		if m.opts.Selected != "" {
			if m.selected == nil {
				m.err = fmt.Errorf("csvfile %s not found", m.opts.Selected)
				return m, tea.Quit
			}
			m.view = ConfirmView
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgUploadComplete:
		data := msg.data.(uploadComplete)
		m.result = data.result
		m.err = data.err
		m.wait = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == CsvfileListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CsvfileListView:
		return m.renderList()
	case ConfirmView:
		return m.renderConfirm()
	case UploadView:
		return m.renderUpload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.csvfileList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.csvfileList.SelectedItem().(csvfileItem); ok {
				m.selected = item.csvfile
				m.view = ConfirmView
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.csvfileList, cmd = m.csvfileList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = CsvfileListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = UploadView
		return m, tea.Batch(m.startUpload(), m.spinner.Tick)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = CsvfileListView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != CsvfileListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.csvfileList, cmd = m.csvfileList.Update(msg)
	return m, cmd
}

func (m *Model) fetchCsvfiles() tea.Cmd {
	return func() tea.Msg {
		csvfiles, err := m.opts.Csvfiles.List(m.ctx, map[string]any{"user_id": m.opts.UserID})
		return csvfilesFetchedMsg(csvfiles, err)
	}
}

// startUpload runs the upload in the background. The goroutine publishes the outcome
// before closing the channel, so waitForProgress observes it after the close.
func (m *Model) startUpload() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 64)
	csvfile := m.selected

	var outcome uploadComplete
	go func() {
		defer close(progressChan)
		outcome.result, outcome.err = m.opts.Upload(m.ctx, csvfile, progressChan)
	}()

	m.wait = func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			return uploadCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.wait == nil {
		return nil
	}
	return m.wait
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.csvfileList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	c := m.selected
	title := styles.title.Render(fmt.Sprintf("Upload %s into '%s'?", m.opts.Source, c.Name()))
	info := fmt.Sprintf("\nLabel column: %d\nPixel columns: %d-%d\n", c.LabelCol(), c.ImgColStart(), c.ImgColEnd())
	if c.File() != "" {
		info += styles.warn.Render(fmt.Sprintf("Replaces %s", c.File())) + "\n"
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderUpload() string {
	title := styles.title.Render("Converting " + m.selected.Name())

	var phase string
	switch m.progress.Phase {
	case tasks.ValidateGeometry:
		phase = "Checking pixel columns..."
	case tasks.ReadRows:
		phase = "Reading rows..."
	case tasks.ConvertRows:
		phase = fmt.Sprintf("Converting rows (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Uploading..."
	}

	var percent float64
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s\n%s", title, m.spinner.View(), phase, m.bar.ViewAs(percent), styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		var b strings.Builder
		b.WriteString(styles.err.Render("✗ Upload aborted"))
		var rowErr *tasks.RowError
		if errors.As(m.err, &rowErr) {
			fmt.Fprintf(&b, "\n\nRow %d failed; rows before it were kept.", rowErr.Row)
		}
		fmt.Fprintf(&b, "\n%v\n\n%s", m.err, helpView)
		return b.String()
	}

	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Upload Complete!")
	info := fmt.Sprintf(
		"\nCsvfile: %s\nImages: %d (%dx%d)\nRead: %s in %s",
		m.result.Csvfile.Name(),
		m.result.Rows,
		m.result.Side, m.result.Side,
		humanize.Bytes(uint64(m.result.Bytes)),
		m.result.Elapsed.Round(time.Millisecond),
	)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
