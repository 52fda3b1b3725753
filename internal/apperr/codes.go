package apperr

// Code is a machine-readable error code.
type Code string

// Kind is one of the error categories surfaced to callers.
type Kind string

const (
	KindNone         Kind = ""
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindPrecondition Kind = "precondition"
	KindCollaborator Kind = "collaborator"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity
	CodeNotLoggedIn       Code = "NOT_LOGGED_IN"
	CodeCharacterNotFound Code = "CHARACTER_NOT_FOUND"
	CodeCharacterExists   Code = "CHARACTER_EXISTS"

	// Tasks
	CodeTaskNotFound          Code = "TASK_NOT_FOUND"
	CodeTaskNotOwned          Code = "TASK_NOT_OWNED"
	CodeTaskInvalidInput      Code = "TASK_INVALID_INPUT"
	CodeTaskInvalidTransition Code = "TASK_INVALID_TRANSITION"
	CodeTaskTerminal          Code = "TASK_TERMINAL"
	CodeTaskNotRecurring      Code = "TASK_NOT_RECURRING"
	CodeTaskFutureCompletion  Code = "TASK_FUTURE_COMPLETION"
	CodeTaskOutsideWindow     Code = "TASK_OUTSIDE_COMPLETION_WINDOW"
	CodeTaskQuotaExhausted    Code = "TASK_QUOTA_EXHAUSTED"

	// Bosses
	CodeBossNotFound      Code = "BOSS_NOT_FOUND"
	CodeBossNotAvailable  Code = "BOSS_NOT_AVAILABLE"
	CodeEncounterNotFound Code = "ENCOUNTER_NOT_FOUND"
	CodeEncounterFinished Code = "ENCOUNTER_FINISHED"
	CodeEncounterActive   Code = "ENCOUNTER_ACTIVE"

	// Equipment
	CodeEquipmentNotFound       Code = "EQUIPMENT_NOT_FOUND"
	CodeEquipmentNotOwned       Code = "EQUIPMENT_NOT_OWNED"
	CodeEquipmentUnknownItem    Code = "EQUIPMENT_UNKNOWN_ITEM"
	CodeEquipmentNotPurchasable Code = "EQUIPMENT_NOT_PURCHASABLE"
	CodeEquipmentNotUpgradable  Code = "EQUIPMENT_NOT_UPGRADABLE"
	CodeInsufficientCoins       Code = "INSUFFICIENT_COINS"

	// Guilds and missions
	CodeGuildNotFound        Code = "GUILD_NOT_FOUND"
	CodeGuildInvalidInput    Code = "GUILD_INVALID_INPUT"
	CodeGuildInactive        Code = "GUILD_INACTIVE"
	CodeGuildNotLeader       Code = "GUILD_NOT_LEADER"
	CodeGuildAlreadyMember   Code = "GUILD_ALREADY_MEMBER"
	CodeGuildNotMember       Code = "GUILD_NOT_MEMBER"
	CodeGuildMissionBlocking Code = "GUILD_MISSION_BLOCKING"
	CodeMissionAlreadyActive Code = "MISSION_ALREADY_ACTIVE"
	CodeMissionNotFound      Code = "MISSION_NOT_FOUND"
	CodeMissionClosed        Code = "MISSION_CLOSED"

	// Collaborators
	CodeStoreFailure Code = "STORE_FAILURE"
	CodeSyncFailure  Code = "SYNC_FAILURE"
	CodeShutdown     Code = "SHUTDOWN"
	CodeBusy         Code = "BUSY"
)

var codeKinds = map[Code]Kind{
	CodeNotLoggedIn:       KindPrecondition,
	CodeCharacterNotFound: KindNotFound,
	CodeCharacterExists:   KindPrecondition,

	CodeTaskNotFound:          KindNotFound,
	CodeTaskNotOwned:          KindValidation,
	CodeTaskInvalidInput:      KindValidation,
	CodeTaskInvalidTransition: KindValidation,
	CodeTaskTerminal:          KindValidation,
	CodeTaskNotRecurring:      KindValidation,
	CodeTaskFutureCompletion:  KindValidation,
	CodeTaskOutsideWindow:     KindValidation,
	CodeTaskQuotaExhausted:    KindValidation,

	CodeBossNotFound:      KindNotFound,
	CodeBossNotAvailable:  KindPrecondition,
	CodeEncounterNotFound: KindNotFound,
	CodeEncounterFinished: KindValidation,
	CodeEncounterActive:   KindPrecondition,

	CodeEquipmentNotFound:       KindNotFound,
	CodeEquipmentNotOwned:       KindValidation,
	CodeEquipmentUnknownItem:    KindNotFound,
	CodeEquipmentNotPurchasable: KindValidation,
	CodeEquipmentNotUpgradable:  KindValidation,
	CodeInsufficientCoins:       KindPrecondition,

	CodeGuildNotFound:        KindNotFound,
	CodeGuildInvalidInput:    KindValidation,
	CodeGuildInactive:        KindPrecondition,
	CodeGuildNotLeader:       KindValidation,
	CodeGuildAlreadyMember:   KindPrecondition,
	CodeGuildNotMember:       KindPrecondition,
	CodeGuildMissionBlocking: KindPrecondition,
	CodeMissionAlreadyActive: KindPrecondition,
	CodeMissionNotFound:      KindNotFound,
	CodeMissionClosed:        KindValidation,

	CodeStoreFailure: KindCollaborator,
	CodeSyncFailure:  KindCollaborator,
	CodeShutdown:     KindCollaborator,
	CodeBusy:         KindCollaborator,
}

// Kind returns the category of the code.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindCollaborator
}
