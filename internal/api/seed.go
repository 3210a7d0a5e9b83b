package api

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xcyber/portal/internal/models"
)

// seedUser carries a plaintext password that is hashed on load.
type seedUser struct {
	models.User
	Password string `json:"password"`
}

type seedFile struct {
	Providers []*models.Provider `json:"providers"`
	Sections  []*models.Section  `json:"sections"`
	Questions []*models.Question `json:"questions"`
	Responses []*models.Response `json:"responses"`
	Users     []seedUser         `json:"users"`
}

func (f *seedFile) build(hashCost int) (*models.Seed, error) {
	seed := &models.Seed{
		Providers: f.Providers,
		Sections:  f.Sections,
		Questions: f.Questions,
		Responses: f.Responses,
	}
	for _, su := range f.Users {
		u := su.User
		if len(u.PassHash) == 0 && su.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), hashCost)
			if err != nil {
				return nil, fmt.Errorf("hash seed password for %s: %w", u.Email, err)
			}
			u.PassHash = hash
		}
		u.Password = ""
		seed.Users = append(seed.Users, &u)
	}
	return seed, nil
}

// LoadSeedFile reads a JSON seed. User entries may carry a plaintext "password".
func LoadSeedFile(path string, hashCost int) (*models.Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return f.build(hashCost)
}

// DefaultSeed is the built-in demo dataset: three providers, two with forms,
// one account per role and a draft in progress.
func DefaultSeed(hashCost int) (*models.Seed, error) {
	t0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	f := &seedFile{
		Providers: []*models.Provider{
			{ID: "prov-safeharbor", Name: "SafeHarbor Insurance", LogoURL: "/logos/safeharbor.svg", CreatedAt: t0},
			{ID: "prov-pinnacle", Name: "Pinnacle Life", LogoURL: "/logos/pinnacle.svg", CreatedAt: t0},
			{ID: "prov-evergreen", Name: "Evergreen Assurance", LogoURL: "/logos/evergreen.svg", CreatedAt: t0},
		},
		Sections: []*models.Section{
			{ID: "sec-sh-personal", ProviderID: "prov-safeharbor", Title: "Personal Information", Order: 1, CreatedAt: t0},
			{ID: "sec-sh-vehicle", ProviderID: "prov-safeharbor", Title: "Vehicle Details", Order: 2, CreatedAt: t0},
			{ID: "sec-pl-health", ProviderID: "prov-pinnacle", Title: "Health Background", Order: 1, CreatedAt: t0},
		},
		Questions: []*models.Question{
			{ID: "q-sh-name", SectionID: "sec-sh-personal", QuestionText: "Full legal name", QuestionType: models.QuestionText, Required: true, Order: 1, CreatedAt: t0},
			{ID: "q-sh-dob", SectionID: "sec-sh-personal", QuestionText: "Date of birth", QuestionType: models.QuestionDate, Required: true, Order: 2, CreatedAt: t0},
			{ID: "q-sh-email", SectionID: "sec-sh-personal", QuestionText: "Contact email", QuestionType: models.QuestionEmail, Required: true, Order: 3, CreatedAt: t0},
			{ID: "q-sh-phone", SectionID: "sec-sh-personal", QuestionText: "Mobile number", QuestionType: models.QuestionPhone, Order: 4, CreatedAt: t0},
			{ID: "q-sh-make", SectionID: "sec-sh-vehicle", QuestionText: "Vehicle make", QuestionType: models.QuestionDropdown, Options: []string{"Toyota", "Honda", "Ford", "Other"}, Required: true, Order: 1, CreatedAt: t0},
			{ID: "q-sh-year", SectionID: "sec-sh-vehicle", QuestionText: "Year of manufacture", QuestionType: models.QuestionNumber, Required: true, Order: 2, CreatedAt: t0},
			{ID: "q-sh-usage", SectionID: "sec-sh-vehicle", QuestionText: "Primary use", QuestionType: models.QuestionMCQ, Options: []string{"Personal", "Commercial", "Ride sharing"}, Required: true, Order: 3, CreatedAt: t0},
			{ID: "q-sh-extras", SectionID: "sec-sh-vehicle", QuestionText: "Optional coverage", QuestionType: models.QuestionCheckbox, Options: []string{"Roadside assistance", "Rental car", "Glass cover"}, Order: 4, CreatedAt: t0},
			{ID: "q-pl-smoker", SectionID: "sec-pl-health", QuestionText: "Do you smoke?", QuestionType: models.QuestionMCQ, Options: []string{"Yes", "No"}, Required: true, Order: 1, CreatedAt: t0},
			{ID: "q-pl-history", SectionID: "sec-pl-health", QuestionText: "Relevant medical history", QuestionType: models.QuestionTextarea, Order: 2, CreatedAt: t0},
		},
		Users: []seedUser{
			{User: models.User{ID: "u-admin", Email: "admin@xcyber.io", Name: "Portal Admin", Role: models.RoleAdmin, CreatedAt: t0}, Password: "admin123"},
			{User: models.User{ID: "u-agent", Email: "agent@safeharbor.example", Name: "Sam Agent", Role: models.RoleAgent, InsuranceProviderID: "prov-safeharbor", CreatedAt: t0}, Password: "agent123"},
			{User: models.User{ID: "u-jane", Email: "jane@example.com", Name: "Jane Doe", Phone: "+15550100", Role: models.RoleUser, CreatedAt: t0}, Password: "user123"},
		},
		Responses: []*models.Response{
			{ID: "r-jane-name", UserID: "u-jane", ProviderID: "prov-safeharbor", SectionID: "sec-sh-personal", QuestionID: "q-sh-name", Answer: models.Single("Jane Doe"), CreatedAt: t0, UpdatedAt: t0},
			{ID: "r-jane-extras", UserID: "u-jane", ProviderID: "prov-safeharbor", SectionID: "sec-sh-vehicle", QuestionID: "q-sh-extras", Answer: models.Multi("Roadside assistance"), CreatedAt: t0, UpdatedAt: t0},
		},
	}
	return f.build(hashCost)
}
