package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/runtime"
)

// eventBuffer bounds how far the view may lag behind the engine before
// events are dropped.
const eventBuffer = 1024

// Run executes eng while showing its progress. The engine must have a
// bus. Quitting the view cancels the run; the partial result is returned.
func Run(ctx context.Context, eng *runtime.Engine, opts ...tea.ProgramOption) (*runtime.ScenarioResult, error) {
	if eng.Bus == nil {
		return nil, fmt.Errorf("tui: engine has no event bus")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := eng.Bus.SubscribeChannel(events.ByRun(eng.RunID), eventBuffer)
	p := tea.NewProgram(NewModel(eng.Scenario, sub.C, cancel), opts...)

	type outcome struct {
		res *runtime.ScenarioResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.Run(ctx)
		eng.Bus.Unsubscribe(sub)
		done <- outcome{res, err}
		p.Send(doneMsg{Result: res, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}
	out := <-done
	return out.res, out.err
}
