package types

import (
	"time"

	"github.com/google/uuid"
)

// Product is the software product whose metadata gets submitted. Its fields
// are injected verbatim into the model prompt.
type Product struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	WebsiteURL   string    `gorm:"size:500;not null" json:"website_url"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	Category     string    `gorm:"size:100" json:"category,omitempty"`
	Logo         string    `gorm:"size:500" json:"logo,omitempty"`
	ContactEmail string    `gorm:"size:255" json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PromptData returns the product fields in the shape the decision prompt
// embeds.
func (p *Product) PromptData() map[string]any {
	return map[string]any{
		"name":          p.Name,
		"website_url":   p.WebsiteURL,
		"description":   p.Description,
		"category":      p.Category,
		"logo":          p.Logo,
		"contact_email": p.ContactEmail,
	}
}

// Directory is a third-party listing site a product can be submitted to.
type Directory struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	SubmissionURL  string    `gorm:"size:500;not null" json:"submission_url"`
	RequiresLogin  bool      `gorm:"not null;default:false" json:"requires_login"`
	CredentialsKey string    `gorm:"size:100" json:"credentials_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Attempts []Attempt `gorm:"foreignKey:DirectoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// Credentials are optional login credentials passed through to the decision
// prompt when a directory requires an account.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}
