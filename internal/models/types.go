package models

import "time"

// Role gates what a signed-in user may do.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleUser:
		return true
	}
	return false
}

// QuestionType selects the input control and the answer shape.
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionNumber   QuestionType = "number"
	QuestionDate     QuestionType = "date"
	QuestionEmail    QuestionType = "email"
	QuestionPhone    QuestionType = "phone"
	QuestionMCQ      QuestionType = "mcq"
	QuestionCheckbox QuestionType = "checkbox"
	QuestionDropdown QuestionType = "dropdown"
)

var QuestionTypes = []QuestionType{
	QuestionText, QuestionTextarea, QuestionNumber, QuestionDate, QuestionEmail,
	QuestionPhone, QuestionMCQ, QuestionCheckbox, QuestionDropdown,
}

func (t QuestionType) Valid() bool {
	for _, v := range QuestionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// HasOptions reports whether answers must be picked from Question.Options.
func (t QuestionType) HasOptions() bool {
	return t == QuestionMCQ || t == QuestionCheckbox || t == QuestionDropdown
}

// MultiValued reports whether the answer is a set of choices.
func (t QuestionType) MultiValued() bool { return t == QuestionCheckbox }

// Provider is an insurance company. Immutable after seeding.
type Provider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Section groups questions of one provider's form. Order is 1-based and never renumbered.
type Section struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	Title      string    `json:"title"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"`
}

type Question struct {
	ID           string       `json:"id"`
	SectionID    string       `json:"section_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options,omitempty"`
	Required     bool         `json:"required"`
	Order        int          `json:"order"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Response is one user's answer to one question. At most one exists per (UserID, QuestionID).
type Response struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProviderID  string    `json:"provider_id"`
	SectionID   string    `json:"section_id"`
	QuestionID  string    `json:"question_id"`
	Answer      Answer    `json:"answer"`
	IsSubmitted bool      `json:"is_submitted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Password            string    `json:"password"`
	PassHash            []byte    `json:"-"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone,omitempty"`
	Role                Role      `json:"role"`
	InsuranceProviderID string    `json:"insurance_provider_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Public returns a copy safe to hand out: no password, no hash.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Password = ""
	cp.PassHash = nil
	return &cp
}

// FormStatus is the state of one user's answer set for one provider.
type FormStatus string

const (
	StatusNotStarted FormStatus = "NOT_STARTED"
	StatusDraft      FormStatus = "DRAFT"
	StatusSubmitted  FormStatus = "SUBMITTED"
)

// Seed is the initial dataset a store is loaded with.
type Seed struct {
	Providers []*Provider `json:"providers"`
	Sections  []*Section  `json:"sections"`
	Questions []*Question `json:"questions"`
	Responses []*Response `json:"responses"`
	Users     []*User     `json:"users"`
}

// AuditEntry records an administrative change.
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}
