package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"questguild/internal/app"
	"questguild/internal/engine"
	"questguild/internal/storage"
	"questguild/internal/ui"
)

type boardModel struct {
	ctx context.Context
	app *app.App

	width  int
	height int

	status *engine.StatusView
	boss   *engine.BossView
	tasks  []storage.Task

	selected int

	lastLog string
	loading bool
	err     error
}

type loadedMsg struct {
	status *engine.StatusView
	boss   *engine.BossView
	tasks  []storage.Task
	err    error
}

type completedMsg struct {
	id  int64
	res *engine.CompleteResult
	err error
}

type attackedMsg struct {
	res *engine.AttackResult
	err error
}

func newBoardModel(ctx context.Context, a *app.App) boardModel {
	return boardModel{
		ctx:     ctx,
		app:     a,
		loading: true,
		lastLog: "Loaded.",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

// loadCmd fans the three reads out to the pools and joins them.
func (m boardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		statusF := m.app.Status(m.ctx)
		bossF := m.app.CurrentBoss(m.ctx)
		tasksF := m.app.ListTasks(m.ctx, engine.StatusActive, engine.StatusPaused)

		status, err := app.Await(m.ctx, statusF)
		if err != nil {
			return loadedMsg{err: err}
		}
		boss, err := app.Await(m.ctx, bossF)
		if err != nil {
			return loadedMsg{err: err}
		}
		tasks, err := app.Await(m.ctx, tasksF)
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{status: status, boss: boss, tasks: tasks}
	}
}

func (m boardModel) completeCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		res, err := app.Await(m.ctx, m.app.CompleteTask(m.ctx, id))
		return completedMsg{id: id, res: res, err: err}
	}
}

// attackCmd swings at the current boss, opening an encounter first when
// none is running.
func (m boardModel) attackCmd() tea.Cmd {
	open := m.boss != nil && m.boss.Open != nil
	var encounterID int64
	if open {
		encounterID = m.boss.Open.ID
	}
	return func() tea.Msg {
		if !open {
			state, err := app.Await(m.ctx, m.app.StartEncounter(m.ctx))
			if err != nil {
				return attackedMsg{err: err}
			}
			encounterID = state.Encounter.ID
		}
		res, err := app.Await(m.ctx, m.app.Attack(m.ctx, encounterID))
		return attackedMsg{res: res, err: err}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		m.boss = msg.boss
		m.tasks = sortTasks(msg.tasks)
		m.clampSelection()
		m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		return m, nil
	case completedMsg:
		if msg.err != nil {
			m.lastLog = "Complete failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = fmt.Sprintf("Completed %d: +%d XP", msg.res.TaskID, msg.res.XPAwarded)
		if msg.res.LevelUp {
			m.lastLog += fmt.Sprintf(" %s level %d", ui.BadgeLevelUp, msg.res.LevelAfter)
		}
		return m, m.loadCmd()
	case attackedMsg:
		if msg.err != nil {
			m.lastLog = "Attack failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = describeAttack(msg.res)
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.tasks)-1 {
				m.selected++
			}
			return m, nil
		case "c", " ":
			t := m.selectedTask()
			if t == nil {
				m.lastLog = "No task selected."
				return m, nil
			}
			if t.Status != string(engine.StatusActive) {
				m.lastLog = "Only active tasks can be completed."
				return m, nil
			}
			m.lastLog = fmt.Sprintf("Completing %d…", t.ID)
			return m, m.completeCmd(t.ID)
		case "a":
			if m.boss == nil || (!m.boss.Available && m.boss.Open == nil) {
				m.lastLog = "No boss to fight right now."
				return m, nil
			}
			m.lastLog = "Attacking…"
			return m, m.attackCmd()
		}
	}
	return m, nil
}

func (m *boardModel) clampSelection() {
	if m.selected >= len(m.tasks) {
		m.selected = len(m.tasks) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m boardModel) selectedTask() *storage.Task {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.selected]
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}

	sidebar := m.renderSidebar()
	main := m.renderMain()

	leftW := 30
	if m.width > 0 {
		if half := m.width / 2; half < leftW {
			leftW = half
		}
		if leftW < 20 {
			leftW = 20
		}
	}

	linesLeft := strings.Split(sidebar, "\n")
	linesRight := strings.Split(main, "\n")
	rows := len(linesLeft)
	if len(linesRight) > rows {
		rows = len(linesRight)
	}

	var body strings.Builder
	for i := 0; i < rows; i++ {
		l, r := "", ""
		if i < len(linesLeft) {
			l = linesLeft[i]
		}
		if i < len(linesRight) {
			r = linesRight[i]
		}
		body.WriteString(padRight(l, leftW))
		body.WriteString("  ")
		body.WriteString(r)
		body.WriteString("\n")
	}
	return m.renderHeader() + "\n" + body.String() + "\n" + m.lastLog
}

func (m boardModel) renderHeader() string {
	if m.status == nil {
		return "Questguild | loading…"
	}
	c := m.status.Character
	return fmt.Sprintf("Questguild | %s | Level %d %s | XP %s %s %.0f%%",
		c.Name, c.Level, m.status.Title, ui.Number(c.XP),
		progressBar(m.status.Progress, 30), m.status.Progress)
}

func (m boardModel) renderSidebar() string {
	lines := []string{"Character"}
	if m.status == nil {
		lines = append(lines, "Loading…")
	} else {
		c := m.status.Character
		lines = append(lines,
			fmt.Sprintf("- power %s", ui.Number(c.PowerPoints)),
			fmt.Sprintf("- coins %s", ui.Number(c.Coins)),
			fmt.Sprintf("- bonuses +%.0f/+%.0f/+%.0f", m.status.Bonuses.Power, m.status.Bonuses.Success, m.status.Bonuses.Coins),
		)
		if st := m.status.Stats; st != nil {
			lines = append(lines, fmt.Sprintf("- success %d%% (%d/%d)", st.SuccessRate, st.Completed, st.Counted))
		}
		if g := m.status.Guild; g != nil {
			lines = append(lines, "- guild "+g.Name)
		}
	}

	lines = append(lines, "", "Boss")
	lines = append(lines, m.bossLines()...)

	lines = append(lines, "", "Keys",
		"- ↑/↓ or j/k: move",
		"- c/space: complete",
		"- a: attack boss",
		"- r: refresh",
		"- q: quit",
	)
	return strings.Join(lines, "\n")
}

func (m boardModel) bossLines() []string {
	if m.boss == nil || m.boss.Boss == nil {
		return []string{"- none waiting"}
	}
	b := m.boss.Boss
	pct := float64(0)
	if b.MaxHP > 0 {
		pct = float64(b.CurrentHP) * 100 / float64(b.MaxHP)
	}
	out := []string{
		fmt.Sprintf("- level %d  %s/%s HP", b.Level, ui.Number(b.CurrentHP), ui.Number(b.MaxHP)),
		"  " + progressBar(pct, 20),
	}
	switch {
	case m.boss.Open != nil:
		out = append(out, fmt.Sprintf("- fighting, hit %d%%", m.boss.HitChance))
	case m.boss.Available:
		out = append(out, fmt.Sprintf("- ready, hit %d%%", m.boss.HitChance))
	default:
		out = append(out, "- "+m.boss.Reason)
	}
	return out
}

func (m boardModel) renderMain() string {
	if m.loading {
		return "Loading…"
	}
	out := []string{"Tasks"}
	if len(m.tasks) == 0 {
		return strings.Join(append(out, "(nothing scheduled)"), "\n")
	}
	for i, t := range m.tasks {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		mark := ""
		if t.Recurring {
			mark = "[R] "
		}
		line := fmt.Sprintf("%s%s %s (%s/%s, %d xp, %s)",
			mark, t.Name, t.ScheduledAt.Local().Format("Jan 02 15:04"),
			t.Difficulty, t.Importance, t.XPValue, t.Status)
		if i == m.selected {
			line = ui.SelectedRow.Render(line)
		}
		out = append(out, cursor+line)
	}
	return strings.Join(out, "\n")
}

func describeAttack(res *engine.AttackResult) string {
	var b strings.Builder
	if res.Hit {
		fmt.Fprintf(&b, "Hit for %d (roll %d < %d).", res.Damage, res.Roll, res.HitChance)
	} else {
		fmt.Fprintf(&b, "Missed (roll %d, needed < %d).", res.Roll, res.HitChance)
	}
	if res.Finished && res.Result != nil {
		fmt.Fprintf(&b, " Encounter over: %s, %s coins.", res.Result.Outcome, ui.Number(res.Result.Coins))
	} else {
		fmt.Fprintf(&b, " %d attacks left.", res.AttacksLeft)
	}
	return b.String()
}

// sortTasks orders by schedule, then id.
func sortTasks(tasks []storage.Task) []storage.Task {
	out := append([]storage.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func progressBar(percent float64, width int) string {
	if width <= 3 {
		width = 3
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent * float64(width) / 100)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
