package model

// Action reports the outcome of a record write.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionUpToDate Action = "uptodate"
	ActionReplace  Action = "replace"
	ActionDelete   Action = "delete"
	ActionDiscard  Action = "discard"
	ActionError    Action = "error"
)
