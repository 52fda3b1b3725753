// Package ui holds the shared terminal styles for the CLI and the board.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	IconTask    = "📝"
	IconLoop    = "🔁"
	IconDone    = "✅"
	IconLevel   = "⭐"
	IconBoss    = "👹"
	IconSword   = "⚔️"
	IconCoin    = "🪙"
	IconShop    = "🛒"
	IconPotion  = "🧪"
	IconArmor   = "🛡️"
	IconGuild   = "🏰"
	IconMission = "🚩"
	IconTrophy  = "🏆"
	IconWarn    = "⚠️"
	IconError   = "🧨"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(cGold).Background(cPrimary)

	BadgeLevelUp = lipgloss.NewStyle().Bold(true).Foreground(cGold).Render("LEVEL UP")
	BadgeVictory = lipgloss.NewStyle().Bold(true).Foreground(cGood).Render("VICTORY")
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// StatusText colors a task status.
func StatusText(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return Good.Render("completed")
	case "active":
		return H2.Render("active")
	case "paused":
		return Warn.Render("paused")
	case "incomplete":
		return Bad.Render("incomplete")
	default:
		return Muted.Render(status)
	}
}

// OutcomeText colors an encounter outcome.
func OutcomeText(outcome string) string {
	switch outcome {
	case "victory":
		return BadgeVictory
	case "partial_victory":
		return Warn.Render("partial victory")
	case "defeat":
		return Bad.Render("defeat")
	default:
		return Muted.Render(outcome)
	}
}

func TaskIcon(recurring bool) string {
	if recurring {
		return IconLoop
	}
	return IconTask
}

func CategoryIcon(category string) string {
	switch category {
	case "potion":
		return IconPotion
	case "weapon":
		return IconSword
	default:
		return IconArmor
	}
}

// Bar renders a fixed-width fill bar for cur out of max.
func Bar(cur, max int64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if max > 0 && cur > 0 {
		filled = int(cur * int64(width) / max)
		if filled > width {
			filled = width
		}
	}
	return Good.Render(strings.Repeat("█", filled)) + Muted.Render(strings.Repeat("░", width-filled))
}
