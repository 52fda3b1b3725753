package storage

import "time"

type Character struct {
	ID             int64
	UserID         string
	Name           string
	XP             int64
	Level          int
	PowerPoints    int64
	Coins          int64
	StageStartedAt time.Time // last level-up, or creation
	CreatedAt      time.Time
}

type Task struct {
	ID             int64
	CharacterID    int64
	Name           string
	SeriesRoot     string // shared by every instance of a recurring series
	Description    string
	Category       string
	Difficulty     string
	Importance     string
	ScheduledAt    time.Time
	Recurring      bool
	RepeatInterval int
	RepeatUnit     string
	RepeatUntil    *time.Time
	Status         string
	XPValue        int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

type TaskCompletion struct {
	ID          int64
	TaskID      int64
	CharacterID int64
	CompletedAt time.Time
	Difficulty  string
	Importance  string
	QuotaClass  string
	XPAwarded   int
}

type Boss struct {
	ID              int64
	CharacterID     int64
	Level           int
	MaxHP           int64
	CurrentHP       int64
	Defeated        bool
	LastEncounterAt *time.Time
	CreatedAt       time.Time
}

type BossEncounter struct {
	ID                 int64
	BossID             int64
	CharacterID        int64
	AttacksUsed        int
	Hits               int
	DamageDealt        int64
	StartedAt          time.Time
	EndedAt            *time.Time
	Outcome            string
	CoinsAwarded       int64
	DroppedEquipmentID *int64
}

type Equipment struct {
	ID          int64
	CharacterID int64
	ItemCode    string
	Category    string
	BonusType   string
	BonusValue  float64
	Durability  int // -1 is unlimited
	Active      bool
	AcquiredAt  time.Time
}

type Guild struct {
	ID                int64
	Name              string
	LeaderCharacterID int64
	Active            bool
	MissionActive     bool
	CreatedAt         time.Time
}

type GuildMember struct {
	GuildID     int64
	CharacterID int64
	JoinedAt    time.Time
}

type SpecialMission struct {
	ID          int64
	GuildID     int64
	StartedAt   time.Time
	EndsAt      time.Time
	MaxHP       int64
	CurrentHP   int64
	Status      string
	Successful  bool
	CompletedAt *time.Time
}

type MissionProgress struct {
	MissionID         int64
	CharacterID       int64
	ShopPurchases     int
	BossHits          int
	EasyTasks         int
	OtherTasks        int
	ChatDays          int
	LastChatDay       string // YYYY-MM-DD in the configured calendar
	NoUnresolvedBonus bool
	DamageDealt       int64
}
