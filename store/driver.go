package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
	DeleteUser(ctx context.Context, delete *DeleteUser) error

	// Program model related methods.
	CreateProgram(ctx context.Context, create *Program) (*Program, error)
	ListPrograms(ctx context.Context, find *FindProgram) ([]*Program, error)
	UpdateProgram(ctx context.Context, update *UpdateProgram) (*Program, error)
	DeleteProgram(ctx context.Context, delete *DeleteProgram) error

	// ConversationTurn model related methods.
	CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error)
	CountConversationTurns(ctx context.Context, find *FindConversationTurn) (int64, error)
	HideConversationTurns(ctx context.Context, hide *HideConversationTurns) error

	// SweepConversationTurns applies one retention pass for a program in a
	// single transaction: stamp warnings, then hard-delete expired turns.
	SweepConversationTurns(ctx context.Context, sweep *SweepConversationTurns) (*SweepResult, error)

	// PurgeNotificationStamps clears notification timestamps older than the cutoff.
	PurgeNotificationStamps(ctx context.Context, before int64) (int64, error)

	// QuestionEmbedding model related methods. Drivers without vector support
	// may return ErrVectorUnsupported from both.
	UpsertQuestionEmbedding(ctx context.Context, upsert *QuestionEmbedding) (*QuestionEmbedding, error)
	ListQuestionEmbeddings(ctx context.Context, find *FindQuestionEmbedding) ([]*QuestionEmbedding, error)
}
