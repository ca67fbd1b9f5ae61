package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/acswi/programchat/internal/profile"
)

// Store provides database access to all raw objects, plus an in-memory
// program cache so the answer pipeline never hits the database for content.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// programMu guards the two maps below. They are replaced wholesale on
	// reload (compute off to the side, then swap), never mutated in place.
	programMu    sync.RWMutex
	programCache map[string]*Program
	contentHash  map[string]string
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:       driver,
		profile:      profile,
		programCache: make(map[string]*Program),
		contentHash:  make(map[string]string),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// NormalizeProgramCode maps a program code to its canonical (upper-cased) form.
func NormalizeProgramCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashContent returns the stable digest used to namespace answer-cache keys.
func HashContent(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ReloadPrograms rebuilds the program cache and content-hash map from the
// database. New maps are built off to the side and swapped in atomically.
func (s *Store) ReloadPrograms(ctx context.Context) error {
	programs, err := s.driver.ListPrograms(ctx, &FindProgram{})
	if err != nil {
		return err
	}

	cache := make(map[string]*Program, len(programs))
	hashes := make(map[string]string, len(programs))
	for _, program := range programs {
		code := NormalizeProgramCode(program.Code)
		cache[code] = program
		hashes[code] = HashContent(program.Content)
	}

	s.programMu.Lock()
	s.programCache = cache
	s.contentHash = hashes
	s.programMu.Unlock()

	return nil
}

// GetCachedProgram returns the cached program for a code, or nil.
func (s *Store) GetCachedProgram(code string) *Program {
	s.programMu.RLock()
	defer s.programMu.RUnlock()
	return s.programCache[NormalizeProgramCode(code)]
}

// GetContentHash returns the cached content hash for a program code.
func (s *Store) GetContentHash(code string) (string, bool) {
	s.programMu.RLock()
	defer s.programMu.RUnlock()
	hash, ok := s.contentHash[NormalizeProgramCode(code)]
	return hash, ok
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	users, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	return s.driver.UpdateUser(ctx, update)
}

func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) error {
	return s.driver.DeleteUser(ctx, delete)
}

func (s *Store) CreateProgram(ctx context.Context, create *Program) (*Program, error) {
	create.Code = NormalizeProgramCode(create.Code)
	program, err := s.driver.CreateProgram(ctx, create)
	if err != nil {
		return nil, err
	}
	if err := s.ReloadPrograms(ctx); err != nil {
		return nil, err
	}
	return program, nil
}

func (s *Store) GetProgram(ctx context.Context, find *FindProgram) (*Program, error) {
	if find.Code != nil {
		code := NormalizeProgramCode(*find.Code)
		find.Code = &code
	}
	programs, err := s.driver.ListPrograms(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, nil
	}
	return programs[0], nil
}

func (s *Store) ListPrograms(ctx context.Context, find *FindProgram) ([]*Program, error) {
	return s.driver.ListPrograms(ctx, find)
}

func (s *Store) UpdateProgram(ctx context.Context, update *UpdateProgram) (*Program, error) {
	program, err := s.driver.UpdateProgram(ctx, update)
	if err != nil {
		return nil, err
	}
	if err := s.ReloadPrograms(ctx); err != nil {
		return nil, err
	}
	return program, nil
}

func (s *Store) DeleteProgram(ctx context.Context, delete *DeleteProgram) error {
	if err := s.driver.DeleteProgram(ctx, delete); err != nil {
		return err
	}
	return s.ReloadPrograms(ctx)
}

func (s *Store) CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error) {
	return s.driver.CreateConversationTurn(ctx, create)
}

func (s *Store) ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error) {
	return s.driver.ListConversationTurns(ctx, find)
}

func (s *Store) CountConversationTurns(ctx context.Context, find *FindConversationTurn) (int64, error) {
	return s.driver.CountConversationTurns(ctx, find)
}

func (s *Store) HideConversationTurns(ctx context.Context, hide *HideConversationTurns) error {
	return s.driver.HideConversationTurns(ctx, hide)
}

func (s *Store) SweepConversationTurns(ctx context.Context, sweep *SweepConversationTurns) (*SweepResult, error) {
	return s.driver.SweepConversationTurns(ctx, sweep)
}

func (s *Store) PurgeNotificationStamps(ctx context.Context, before int64) (int64, error) {
	return s.driver.PurgeNotificationStamps(ctx, before)
}

func (s *Store) UpsertQuestionEmbedding(ctx context.Context, upsert *QuestionEmbedding) (*QuestionEmbedding, error) {
	return s.driver.UpsertQuestionEmbedding(ctx, upsert)
}

func (s *Store) ListQuestionEmbeddings(ctx context.Context, find *FindQuestionEmbedding) ([]*QuestionEmbedding, error) {
	return s.driver.ListQuestionEmbeddings(ctx, find)
}
