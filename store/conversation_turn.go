package store

// ConversationTurn is one request/response pair bound to a user and program.
// Timestamps are UTC epoch seconds.
type ConversationTurn struct {
	ID          int32
	UID         string
	UserID      int32
	ProgramCode string
	Question    string
	Answer      string
	CreatedTs   int64
	Visible     bool
	// NotifiedTs is set when a pending-deletion warning was issued.
	NotifiedTs *int64
}

type FindConversationTurn struct {
	ID          *int32
	UserID      *int32
	ProgramCode *string
	// CreatedTsAfter is inclusive, CreatedTsBefore exclusive.
	CreatedTsAfter  *int64
	CreatedTsBefore *int64
	Visible         *bool
	Notified        *bool
}

// HideConversationTurns flips visibility off for all turns of a user/program
// pair. Hidden turns still count toward the daily quota.
type HideConversationTurns struct {
	UserID      int32
	ProgramCode string
}

// SweepConversationTurns describes one retention pass over a single program.
// Turns older than DeleteBefore are hard-deleted; visible, un-notified turns
// in [DeleteBefore, WarnBefore) get NotifyTs stamped. Both happen in one
// transaction.
type SweepConversationTurns struct {
	ProgramCode  string
	DeleteBefore int64
	WarnBefore   int64
	NotifyTs     int64
}

// SweepResult reports what a retention pass changed.
type SweepResult struct {
	Notified int64
	Deleted  int64
}
