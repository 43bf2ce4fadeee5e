package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/plugsmith/plugsmith/internal/application/services"
	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	"github.com/plugsmith/plugsmith/internal/core/ports"
)

// runInstallWithProgress runs an install while rendering its progress
// stream. When no terminal is attached the stream is drained silently.
func runInstallWithProgress(ctx context.Context, svc *services.PluginService, req services.InstallRequest) services.InstallResult {
	if req.Kind != plugindomain.SourceRemote || !isTerminal() {
		return svc.Install(ctx, req, ports.NopSink{})
	}

	sink := ports.NewChannelSink(64)
	resultCh := make(chan services.InstallResult, 1)
	go func() {
		resultCh <- svc.Install(ctx, req, sink)
		sink.Close()
	}()

	m := installModel{events: sink.Events(), results: resultCh}
	program := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		// The install itself keeps running; wait for its outcome.
		return <-resultCh
	}
	return final.(installModel).result
}

type progressMsg ports.ProgressEvent

type installDoneMsg services.InstallResult

type installModel struct {
	events  <-chan ports.ProgressEvent
	results <-chan services.InstallResult

	stage   ports.ProgressStage
	percent int
	message string
	result  services.InstallResult
}

func (m installModel) Init() tea.Cmd {
	return m.wait()
}

func (m installModel) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case e, ok := <-m.events:
			if ok {
				return progressMsg(e)
			}
			return installDoneMsg(<-m.results)
		case r := <-m.results:
			return installDoneMsg(r)
		}
	}
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.stage = msg.Stage
		m.percent = msg.Percent
		m.message = msg.Message
		return m, m.wait()
	case installDoneMsg:
		m.result = services.InstallResult(msg)
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// No mid-flight cancellation: stop rendering, let the
			// operation finish in the background.
			m.result = <-m.results
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m installModel) View() string {
	if m.stage == "" {
		return dimStyle.Render("starting...") + "\n"
	}
	width := 30
	filled := m.percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	line := fmt.Sprintf("%s [%s] %3d%%", m.stage, bar, m.percent)
	if m.stage == ports.StageError {
		line = errStyle.Render(line + "  " + m.message)
	} else if m.message != "" {
		line += "  " + dimStyle.Render(m.message)
	}
	return line + "\n"
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
