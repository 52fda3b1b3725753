package engine

import (
	"strings"
)

type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very_easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyVeryEasy, DifficultyEasy, DifficultyHard, DifficultyExtreme:
		return true
	default:
		return false
	}
}

type Importance string

const (
	ImportanceNormal        Importance = "normal"
	ImportanceImportant     Importance = "important"
	ImportanceVeryImportant Importance = "very_important"
	ImportanceSpecial       Importance = "special"
)

func (i Importance) IsValid() bool {
	switch i {
	case ImportanceNormal, ImportanceImportant, ImportanceVeryImportant, ImportanceSpecial:
		return true
	default:
		return false
	}
}

type TaskStatus string

const (
	StatusActive     TaskStatus = "active"
	StatusPaused     TaskStatus = "paused"
	StatusCompleted  TaskStatus = "completed"
	StatusIncomplete TaskStatus = "incomplete"
	StatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusIncomplete, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status change is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusIncomplete || s == StatusCancelled
}

// ParseDifficulty accepts the canonical names plus a few shorthands.
func ParseDifficulty(input string) (Difficulty, bool) {
	s := normalizeToken(input)
	switch s {
	case "very_easy", "veryeasy", "trivial", "ve":
		return DifficultyVeryEasy, true
	case "easy", "e":
		return DifficultyEasy, true
	case "hard", "h":
		return DifficultyHard, true
	case "extreme", "x", "epic":
		return DifficultyExtreme, true
	default:
		return "", false
	}
}

// ParseImportance accepts the canonical names plus a few shorthands.
func ParseImportance(input string) (Importance, bool) {
	s := normalizeToken(input)
	switch s {
	case "normal", "n", "":
		return ImportanceNormal, true
	case "important", "i":
		return ImportanceImportant, true
	case "very_important", "veryimportant", "vi":
		return ImportanceVeryImportant, true
	case "special", "s":
		return ImportanceSpecial, true
	default:
		return "", false
	}
}

func ParseStatus(input string) (TaskStatus, bool) {
	s := TaskStatus(normalizeToken(input))
	return s, s.IsValid()
}

func normalizeToken(input string) string {
	s := strings.TrimSpace(strings.ToLower(input))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// IsEasyTask reports whether a task counts as an easy task for guild
// missions.
func IsEasyTask(d Difficulty, i Importance) bool {
	return (d == DifficultyVeryEasy || d == DifficultyEasy) &&
		(i == ImportanceNormal || i == ImportanceImportant)
}
