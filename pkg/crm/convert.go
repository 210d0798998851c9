package crm

import (
	"context"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// Conversion targets accepted by the cascade
const (
	ConvertContact = "contact"
	ConvertAccount = "account"
	ConvertDeal    = "deal"
)

// Converter runs the lead conversion cascade
type Converter struct {
	leads    *LeadStore
	contacts *ContactStore
	accounts *AccountStore
	deals    *DealStore
}

// NewConverter creates a converter over the entity stores
func NewConverter(leads *LeadStore, contacts *ContactStore, accounts *AccountStore, deals *DealStore) *Converter {
	return &Converter{
		leads:    leads,
		contacts: contacts,
		accounts: accounts,
		deals:    deals,
	}
}

// ConversionResult is what a conversion produced
type ConversionResult struct {
	Converted ConvertedTo `json:"converted"`
	Lead      *Lead       `json:"lead"`
}

// Convert runs the ordered cascade for the requested targets: contact,
// then account (linking this invocation's contact to it), then deal
// (wired to whichever ids exist). The lead ends Qualified with its
// conversion artifacts and timestamp set, regardless of targets. A
// second conversion of the same lead is rejected.
func (c *Converter) Convert(ctx context.Context, leadID int64, targets []string) (*ConversionResult, error) {
	wants, err := parseTargets(targets)
	if err != nil {
		return nil, err
	}

	lead, err := c.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !lead.ConvertedTo.Empty() {
		return nil, apperr.InvalidOperation("lead already converted")
	}

	var converted ConvertedTo

	if wants[ConvertContact] {
		contact, err := c.contacts.Create(ctx, &Contact{
			FirstName:  lead.FirstName,
			LastName:   lead.LastName,
			Email:      lead.Email,
			Mobile:     lead.Mobile,
			JobTitle:   lead.JobTitle,
			Notes:      lead.Notes,
			AssignedTo: lead.AssignedTo,
		})
		if err != nil {
			return nil, fmt.Errorf("conversion failed creating contact: %w", err)
		}
		converted.ContactID = &contact.ID
	}

	if wants[ConvertAccount] {
		name := lead.Company
		if name == "" {
			name = lead.FirstName + " " + lead.LastName
		}
		account, err := c.accounts.Create(ctx, &Account{
			Name:       name,
			Email:      lead.Email,
			Phone:      lead.Mobile,
			AssignedTo: lead.AssignedTo,
		})
		if err != nil {
			return nil, fmt.Errorf("conversion failed creating account: %w", err)
		}
		converted.AccountID = &account.ID

		if converted.ContactID != nil {
			if _, err := c.contacts.Update(ctx, *converted.ContactID, ContactUpdate{
				AccountID: converted.AccountID,
			}); err != nil {
				return nil, fmt.Errorf("conversion failed linking contact to account: %w", err)
			}
		}
	}

	if wants[ConvertDeal] {
		deal, err := c.deals.Create(ctx, &Deal{
			Name:       fmt.Sprintf("Deal - %s %s", lead.FirstName, lead.LastName),
			ContactID:  converted.ContactID,
			AccountID:  converted.AccountID,
			Stage:      DealProspecting,
			Value:      lead.Value,
			SourceID:   lead.SourceID,
			AssignedTo: lead.AssignedTo,
		})
		if err != nil {
			return nil, fmt.Errorf("conversion failed creating deal: %w", err)
		}
		converted.DealID = &deal.ID
	}

	lead, err = c.leads.MarkConverted(ctx, leadID, converted)
	if err != nil {
		return nil, err
	}

	return &ConversionResult{Converted: converted, Lead: lead}, nil
}

func parseTargets(targets []string) (map[string]bool, error) {
	if len(targets) == 0 {
		return nil, apperr.InvalidOperation("no conversion targets specified")
	}

	wants := make(map[string]bool, len(targets))
	for _, target := range targets {
		switch target {
		case ConvertContact, ConvertAccount, ConvertDeal:
			wants[target] = true
		default:
			return nil, apperr.InvalidOperation("unknown conversion target: %s", target)
		}
	}
	return wants, nil
}
