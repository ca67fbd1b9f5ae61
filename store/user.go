package store

// RowStatus is the status of a row.
type RowStatus string

const (
	// Active is the status of an active row.
	Active RowStatus = "ACTIVE"
	// Inactive is the status of an inactive row.
	Inactive RowStatus = "INACTIVE"
)

func (s RowStatus) String() string {
	return string(s)
}

// User is a registered chatbot user, identified by email.
type User struct {
	ID           int32
	LastName     string
	Email        string
	PasswordHash string
	Status       RowStatus
	CreatedTs    int64
	ExpiresTs    *int64
	VisitCount   int32

	// AccessTags grant programs that carry a matching tag.
	AccessTags []string
}

type FindUser struct {
	ID     *int32
	Email  *string
	Status *RowStatus
}

type UpdateUser struct {
	ID           int32
	LastName     *string
	PasswordHash *string
	Status       *RowStatus
	ExpiresTs    *int64
	VisitCount   *int32
	AccessTags   *[]string
}

type DeleteUser struct {
	ID int32
}
