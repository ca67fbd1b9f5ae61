package store

// DefaultCharBudget is the default maximum length of stored program content.
const DefaultCharBudget = 50000

// Program is a knowledge unit plus its configuration.
type Program struct {
	ID          int32
	Code        string // unique, stored upper-cased
	Name        string
	Description string
	Content     string
	CharBudget  int32
	Active      bool
	DailyQuota  int32
	// IntroMessage supports {program} and {quota} placeholders.
	IntroMessage string
	Category     string
	// Role and Guidelines override the default system prompt when set.
	Role       string
	Guidelines string
	// RetentionDays of nil (or 0) means turns are kept forever.
	RetentionDays *int32
	CreatedTs     int64
	UpdatedTs     int64

	// AccessTags gate user access; an empty set means open to all users.
	AccessTags []string
}

type FindProgram struct {
	ID     *int32
	Code   *string
	Active *bool
}

type UpdateProgram struct {
	ID            int32
	Name          *string
	Description   *string
	Content       *string
	CharBudget    *int32
	Active        *bool
	DailyQuota    *int32
	IntroMessage  *string
	Category      *string
	Role          *string
	Guidelines    *string
	RetentionDays *int32
	AccessTags    *[]string
	UpdatedTs     *int64
}

type DeleteProgram struct {
	ID int32
}
