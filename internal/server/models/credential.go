package models

import "time"

// Credential is a named secret owned by one user. Secret holds ciphertext
// except where a method says otherwise.
type Credential struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	Secret    string    `json:"password"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SecurityQuestion belongs to a credential. Answer is ciphertext when stored.
type SecurityQuestion struct {
	ID           int64     `json:"-"`
	CredentialID int64     `json:"-"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// QuestionInput is a plaintext question/answer pair as submitted by a client.
type QuestionInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type CredentialPage struct {
	Items    []*Credential `json:"passwords"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

type ListFilter struct {
	Page     int
	PageSize int
	Search   string
}

// CreateCredential carries plaintext input for a new credential.
type CreateCredential struct {
	Name      string
	Secret    string
	Image     *string
	Questions []QuestionInput
}

// UpdateCredential is a partial update. Nil fields are left unchanged; a
// non-nil Questions replaces the whole question set (an empty slice clears it).
type UpdateCredential struct {
	Name      *string
	Secret    *string
	Image     *string
	Questions *[]QuestionInput
}

// ExportedCredential is a fully decrypted credential for download.
type ExportedCredential struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Secret            string          `json:"password"`
	SecurityQuestions []QuestionInput `json:"securityQuestions"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
