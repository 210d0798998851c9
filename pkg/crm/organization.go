package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Address is the organization's mailing address
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// WorkingHours is the organization's business schedule
type WorkingHours struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

// Holiday is one non-working day
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// Organization is the singleton company settings record
type Organization struct {
	ID           int64        `json:"id"`
	CompanyName  string       `json:"company_name"`
	CompanyEmail string       `json:"company_email"`
	CompanyPhone string       `json:"company_phone,omitempty"`
	Address      Address      `json:"address"`
	Currency     string       `json:"currency"`
	Timezone     string       `json:"timezone"`
	WorkingHours WorkingHours `json:"working_hours"`
	Holidays     []Holiday    `json:"holidays"`
	Logo         string       `json:"logo,omitempty"`
	Website      string       `json:"website,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// OrganizationUpdate carries partial-update fields; nil means unchanged
type OrganizationUpdate struct {
	CompanyName  *string       `json:"company_name"`
	CompanyEmail *string       `json:"company_email"`
	CompanyPhone *string       `json:"company_phone"`
	Address      *Address      `json:"address"`
	Currency     *string       `json:"currency"`
	Timezone     *string       `json:"timezone"`
	WorkingHours *WorkingHours `json:"working_hours"`
	Holidays     *[]Holiday    `json:"holidays"`
	Logo         *string       `json:"logo"`
	Website      *string       `json:"website"`
}

// OrganizationStore persists the singleton settings row
type OrganizationStore struct {
	db *sql.DB
}

// NewOrganizationStore creates an organization store
func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

const organizationColumns = `id, company_name, company_email, company_phone, address,
	currency, timezone, working_hours, holidays, logo, website, created_at, updated_at`

func scanOrganization(row interface{ Scan(...interface{}) error }) (*Organization, error) {
	var org Organization
	var address, workingHours, holidays []byte

	err := row.Scan(
		&org.ID, &org.CompanyName, &org.CompanyEmail, &org.CompanyPhone, &address,
		&org.Currency, &org.Timezone, &workingHours, &holidays,
		&org.Logo, &org.Website, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(address, &org.Address); err != nil {
		return nil, fmt.Errorf("failed to decode organization address: %w", err)
	}
	if err := json.Unmarshal(workingHours, &org.WorkingHours); err != nil {
		return nil, fmt.Errorf("failed to decode organization working hours: %w", err)
	}
	if err := json.Unmarshal(holidays, &org.Holidays); err != nil {
		return nil, fmt.Errorf("failed to decode organization holidays: %w", err)
	}
	if org.Holidays == nil {
		org.Holidays = []Holiday{}
	}
	return &org, nil
}

// Get returns the settings row, seeding the default on first access
func (s *OrganizationStore) Get(ctx context.Context) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM organization ORDER BY id LIMIT 1", organizationColumns))
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return s.seed(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (s *OrganizationStore) seed(ctx context.Context) (*Organization, error) {
	defaults, err := json.Marshal(WorkingHours{
		Start: "09:00",
		End:   "17:00",
		Days:  []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
	})
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO organization (company_name, company_email, working_hours)
		VALUES ($1, $2, $3)
		RETURNING %s`, organizationColumns),
		"CRM Organization", "admin@crm.com", defaults)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("failed to seed organization: %w", err)
	}
	return org, nil
}

// Update applies a partial update and returns the refreshed settings
func (s *OrganizationStore) Update(ctx context.Context, update OrganizationUpdate) (*Organization, error) {
	org, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	var b clauseBuilder

	if update.CompanyName != nil {
		b.add("company_name = $%d", *update.CompanyName)
	}
	if update.CompanyEmail != nil {
		b.add("company_email = $%d", *update.CompanyEmail)
	}
	if update.CompanyPhone != nil {
		b.add("company_phone = $%d", *update.CompanyPhone)
	}
	if update.Address != nil {
		encoded, err := json.Marshal(update.Address)
		if err != nil {
			return nil, err
		}
		b.add("address = $%d", encoded)
	}
	if update.Currency != nil {
		b.add("currency = $%d", *update.Currency)
	}
	if update.Timezone != nil {
		b.add("timezone = $%d", *update.Timezone)
	}
	if update.WorkingHours != nil {
		encoded, err := json.Marshal(update.WorkingHours)
		if err != nil {
			return nil, err
		}
		b.add("working_hours = $%d", encoded)
	}
	if update.Holidays != nil {
		encoded, err := json.Marshal(update.Holidays)
		if err != nil {
			return nil, err
		}
		b.add("holidays = $%d", encoded)
	}
	if update.Logo != nil {
		b.add("logo = $%d", *update.Logo)
	}
	if update.Website != nil {
		b.add("website = $%d", *update.Website)
	}

	if b.empty() {
		return org, nil
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE organization SET %s WHERE id = $%d", b.set(), b.nextArg(org.ID))

	if _, err := s.db.ExecContext(ctx, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return s.Get(ctx)
}
