// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bookrate/internal/crawl"
	"bookrate/internal/model"
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

type progressStyles struct {
	query    lipgloss.Style
	platform lipgloss.Style
	rating   lipgloss.Style
	dim      lipgloss.Style
	done     lipgloss.Style
}

func newProgressStyles() progressStyles {
	return progressStyles{
		query:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("254")),
		platform: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110")),
		rating:   lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("247")).Faint(true),
		done:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
	}
}

type eventMsg crawl.Event

type streamClosedMsg struct{}

// progressModel renders streamed crawl results as they arrive.
type progressModel struct {
	query    string
	expected int
	events   <-chan crawl.Event

	spinner  spinner.Model
	styles   progressStyles
	outcomes []model.PlatformOutcome
	summary  *crawl.DoneSummary
	finished bool
}

func newProgressModel(query string, expected int, events <-chan crawl.Event) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	return progressModel{
		query:    query,
		expected: expected,
		events:   events,
		spinner:  sp,
		styles:   newProgressStyles(),
	}
}

func (m progressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		if msg.Outcome != nil {
			m.outcomes = append(m.outcomes, *msg.Outcome)
			return m, m.waitForEvent()
		}
		if msg.Done != nil {
			m.summary = msg.Done
			m.finished = true
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", m.styles.dim.Render("searching"), m.styles.query.Render(m.query))

	for i := range m.outcomes {
		b.WriteString(m.renderOutcome(&m.outcomes[i]))
		b.WriteString("\n")
	}

	switch {
	case m.summary != nil:
		b.WriteString("\n")
		b.WriteString(m.styles.done.Render(m.renderSummary()))
		b.WriteString("\n")
	case m.finished:
		b.WriteString("\n")
		b.WriteString(m.styles.dim.Render("stopped"))
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "\n%s %s\n", m.spinner.View(),
			m.styles.dim.Render(fmt.Sprintf("%d/%d platforms", len(m.outcomes), m.expected)))
	}
	return b.String()
}

func (m progressModel) renderOutcome(o *model.PlatformOutcome) string {
	rating := "N/A"
	if o.Rating != nil {
		rating = fmt.Sprintf("%.1f/%d", *o.Rating, o.RatingScale)
		if normalized := o.NormalizedRating(); normalized != nil && o.RatingScale != 10 {
			rating += m.styles.dim.Render(fmt.Sprintf(" (%.1f/10)", *normalized))
		}
	}
	return fmt.Sprintf("%s %s %s",
		m.styles.platform.Render(fmt.Sprintf("%-12s", o.Platform)),
		m.styles.rating.Render(rating),
		m.styles.dim.Render(fmt.Sprintf("%d reviews", o.ReviewCount)))
}

func (m progressModel) renderSummary() string {
	if m.summary.MeanRating == nil {
		return fmt.Sprintf("no ratings found across %d platforms", m.summary.PlatformCount)
	}
	return fmt.Sprintf("mean %.2f/10 across %d platforms, %d reviews total",
		*m.summary.MeanRating, m.summary.PlatformCount, m.summary.TotalReviews)
}

// RunProgress consumes a crawl event stream in an interactive progress
// view and returns the outcomes received. The expected count only sizes
// the progress indicator.
func RunProgress(query string, expected int, events <-chan crawl.Event) ([]model.PlatformOutcome, error) {
	final, err := runProgram(newProgressModel(query, expected, events))
	if err != nil {
		return nil, fmt.Errorf("progress UI failed: %w", err)
	}
	m, ok := final.(progressModel)
	if !ok {
		return nil, fmt.Errorf("unexpected final model type %T", final)
	}
	return m.outcomes, nil
}
