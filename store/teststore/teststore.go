// Package teststore provides an in-memory store.Driver for unit tests that
// exercise store-backed services without a database.
package teststore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/acswi/programchat/internal/profile"
	"github.com/acswi/programchat/store"
)

// Driver is an in-memory store.Driver.
type Driver struct {
	mu     sync.Mutex
	nextID int32

	users    []*store.User
	programs []*store.Program
	turns    []*store.ConversationTurn
	embeds   []*store.QuestionEmbedding

	// VectorUnsupported mimics drivers without embedding persistence.
	VectorUnsupported bool
}

func New() *Driver {
	return &Driver{}
}

// NewStore wraps the driver in a store facade.
func NewStore(driver *Driver) *store.Store {
	return store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
}

func (d *Driver) GetDB() *sql.DB { return nil }
func (d *Driver) Close() error   { return nil }

func (d *Driver) IsInitialized(_ context.Context) (bool, error) { return true, nil }

func (d *Driver) id() int32 {
	d.nextID++
	return d.nextID
}

func (d *Driver) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	copied := *create
	d.users = append(d.users, &copied)
	return create, nil
}

func (d *Driver) ListUsers(_ context.Context, find *store.FindUser) ([]*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.User{}
	for _, user := range d.users {
		if find.ID != nil && user.ID != *find.ID {
			continue
		}
		if find.Email != nil && user.Email != strings.ToLower(*find.Email) {
			continue
		}
		if find.Status != nil && user.Status != *find.Status {
			continue
		}
		copied := *user
		list = append(list, &copied)
	}
	return list, nil
}

func (d *Driver) UpdateUser(_ context.Context, update *store.UpdateUser) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.ID != update.ID {
			continue
		}
		if update.LastName != nil {
			user.LastName = *update.LastName
		}
		if update.PasswordHash != nil {
			user.PasswordHash = *update.PasswordHash
		}
		if update.Status != nil {
			user.Status = *update.Status
		}
		if update.ExpiresTs != nil {
			user.ExpiresTs = update.ExpiresTs
		}
		if update.VisitCount != nil {
			user.VisitCount = *update.VisitCount
		}
		if update.AccessTags != nil {
			user.AccessTags = append([]string{}, (*update.AccessTags)...)
		}
		copied := *user
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (d *Driver) DeleteUser(_ context.Context, delete *store.DeleteUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, user := range d.users {
		if user.ID == delete.ID {
			d.users = append(d.users[:i], d.users[i+1:]...)
			kept := d.turns[:0]
			for _, turn := range d.turns {
				if turn.UserID != delete.ID {
					kept = append(kept, turn)
				}
			}
			d.turns = kept
			return nil
		}
	}
	return sql.ErrNoRows
}

func (d *Driver) CreateProgram(_ context.Context, create *store.Program) (*store.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	copied := *create
	d.programs = append(d.programs, &copied)
	return create, nil
}

func (d *Driver) ListPrograms(_ context.Context, find *store.FindProgram) ([]*store.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.Program{}
	for _, program := range d.programs {
		if find.ID != nil && program.ID != *find.ID {
			continue
		}
		if find.Code != nil && store.NormalizeProgramCode(program.Code) != store.NormalizeProgramCode(*find.Code) {
			continue
		}
		if find.Active != nil && program.Active != *find.Active {
			continue
		}
		copied := *program
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

func (d *Driver) UpdateProgram(_ context.Context, update *store.UpdateProgram) (*store.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, program := range d.programs {
		if program.ID != update.ID {
			continue
		}
		if update.Name != nil {
			program.Name = *update.Name
		}
		if update.Description != nil {
			program.Description = *update.Description
		}
		if update.Content != nil {
			program.Content = *update.Content
		}
		if update.CharBudget != nil {
			program.CharBudget = *update.CharBudget
		}
		if update.Active != nil {
			program.Active = *update.Active
		}
		if update.DailyQuota != nil {
			program.DailyQuota = *update.DailyQuota
		}
		if update.IntroMessage != nil {
			program.IntroMessage = *update.IntroMessage
		}
		if update.Category != nil {
			program.Category = *update.Category
		}
		if update.Role != nil {
			program.Role = *update.Role
		}
		if update.Guidelines != nil {
			program.Guidelines = *update.Guidelines
		}
		if update.RetentionDays != nil {
			program.RetentionDays = update.RetentionDays
		}
		if update.AccessTags != nil {
			program.AccessTags = append([]string{}, (*update.AccessTags)...)
		}
		if update.UpdatedTs != nil {
			program.UpdatedTs = *update.UpdatedTs
		}
		copied := *program
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (d *Driver) DeleteProgram(_ context.Context, delete *store.DeleteProgram) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, program := range d.programs {
		if program.ID == delete.ID {
			code := store.NormalizeProgramCode(program.Code)
			d.programs = append(d.programs[:i], d.programs[i+1:]...)
			kept := d.turns[:0]
			for _, turn := range d.turns {
				if store.NormalizeProgramCode(turn.ProgramCode) != code {
					kept = append(kept, turn)
				}
			}
			d.turns = kept
			return nil
		}
	}
	return sql.ErrNoRows
}

func (d *Driver) CreateConversationTurn(_ context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	copied := *create
	d.turns = append(d.turns, &copied)
	return create, nil
}

func matchTurn(turn *store.ConversationTurn, find *store.FindConversationTurn) bool {
	if find.ID != nil && turn.ID != *find.ID {
		return false
	}
	if find.UserID != nil && turn.UserID != *find.UserID {
		return false
	}
	if find.ProgramCode != nil && store.NormalizeProgramCode(turn.ProgramCode) != store.NormalizeProgramCode(*find.ProgramCode) {
		return false
	}
	if find.CreatedTsAfter != nil && turn.CreatedTs < *find.CreatedTsAfter {
		return false
	}
	if find.CreatedTsBefore != nil && turn.CreatedTs >= *find.CreatedTsBefore {
		return false
	}
	if find.Visible != nil && turn.Visible != *find.Visible {
		return false
	}
	if find.Notified != nil {
		if *find.Notified != (turn.NotifiedTs != nil) {
			return false
		}
	}
	return true
}

func (d *Driver) ListConversationTurns(_ context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.ConversationTurn{}
	for _, turn := range d.turns {
		if matchTurn(turn, find) {
			copied := *turn
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedTs < list[j].CreatedTs })
	return list, nil
}

func (d *Driver) CountConversationTurns(_ context.Context, find *store.FindConversationTurn) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var count int64
	for _, turn := range d.turns {
		if matchTurn(turn, find) {
			count++
		}
	}
	return count, nil
}

func (d *Driver) HideConversationTurns(_ context.Context, hide *store.HideConversationTurns) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	code := store.NormalizeProgramCode(hide.ProgramCode)
	for _, turn := range d.turns {
		if turn.UserID == hide.UserID && store.NormalizeProgramCode(turn.ProgramCode) == code {
			turn.Visible = false
		}
	}
	return nil
}

func (d *Driver) SweepConversationTurns(_ context.Context, sweep *store.SweepConversationTurns) (*store.SweepResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	code := store.NormalizeProgramCode(sweep.ProgramCode)
	result := &store.SweepResult{}

	for _, turn := range d.turns {
		if store.NormalizeProgramCode(turn.ProgramCode) != code || !turn.Visible {
			continue
		}
		if turn.CreatedTs >= sweep.DeleteBefore && turn.CreatedTs < sweep.WarnBefore && turn.NotifiedTs == nil {
			ts := sweep.NotifyTs
			turn.NotifiedTs = &ts
			result.Notified++
		}
	}

	kept := d.turns[:0]
	for _, turn := range d.turns {
		if store.NormalizeProgramCode(turn.ProgramCode) == code && turn.Visible && turn.CreatedTs < sweep.DeleteBefore {
			result.Deleted++
			continue
		}
		kept = append(kept, turn)
	}
	d.turns = kept
	return result, nil
}

func (d *Driver) PurgeNotificationStamps(_ context.Context, before int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var purged int64
	for _, turn := range d.turns {
		if turn.NotifiedTs != nil && *turn.NotifiedTs < before {
			turn.NotifiedTs = nil
			purged++
		}
	}
	return purged, nil
}

func (d *Driver) UpsertQuestionEmbedding(_ context.Context, upsert *store.QuestionEmbedding) (*store.QuestionEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.VectorUnsupported {
		return nil, store.ErrVectorUnsupported
	}
	code := store.NormalizeProgramCode(upsert.ProgramCode)
	for _, existing := range d.embeds {
		if existing.ProgramCode == code && existing.NormalizedText == upsert.NormalizedText {
			existing.Embedding = append([]float32{}, upsert.Embedding...)
			existing.CreatedTs = upsert.CreatedTs
			return upsert, nil
		}
	}
	upsert.ID = d.id()
	copied := *upsert
	copied.ProgramCode = code
	d.embeds = append(d.embeds, &copied)
	return upsert, nil
}

func (d *Driver) ListQuestionEmbeddings(_ context.Context, find *store.FindQuestionEmbedding) ([]*store.QuestionEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.VectorUnsupported {
		return nil, store.ErrVectorUnsupported
	}
	list := []*store.QuestionEmbedding{}
	for _, embed := range d.embeds {
		if find.ProgramCode != nil && embed.ProgramCode != store.NormalizeProgramCode(*find.ProgramCode) {
			continue
		}
		copied := *embed
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedTs > list[j].CreatedTs })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}
