package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const notAvailable = "N/A"

// Contact holds the fields every submission form collects.
type Contact struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// PreferredEmail returns email, falling back to contact_email.
func (c Contact) PreferredEmail() string {
	if e := strings.TrimSpace(c.Email); e != "" {
		return e
	}
	return strings.TrimSpace(c.ContactEmail)
}

func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Details is the closed set of category specific attribute variants.
type Details interface {
	Category() Category
	ContactInfo() Contact
	nameFields() (business []string, organization string)
}

type BrandDetails struct {
	Contact
	BrandName    string `json:"brand_name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Website      string `json:"website,omitempty"`
}

type InvestorDetails struct {
	Contact
	OrganizationName string `json:"organization_name,omitempty"`
	InvestorType     string `json:"investor_type,omitempty"`
	InvestmentRange  string `json:"investment_range,omitempty"`
}

type WholesaleDetails struct {
	Contact
	BusinessName  string `json:"business_name,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
	MonthlyVolume string `json:"monthly_volume,omitempty"`
}

type AffiliateDetails struct {
	Contact
	Platform     string `json:"platform,omitempty"`
	Handle       string `json:"handle,omitempty"`
	AudienceSize int    `json:"audience_size,omitempty"`
}

type PartnerDetails struct {
	Contact
	BusinessName     string `json:"business_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	PartnershipType  string `json:"partnership_type,omitempty"`
}

// UnknownDetails keeps submissions whose category this console does not
// model. They still list and resolve to the default role.
type UnknownDetails struct {
	Contact
	Kind  Category       `json:"-"`
	Extra map[string]any `json:"-"`
}

func (d BrandDetails) Category() Category     { return CategoryBrand }
func (d InvestorDetails) Category() Category  { return CategoryInvestor }
func (d WholesaleDetails) Category() Category { return CategoryWholesale }
func (d AffiliateDetails) Category() Category { return CategoryAffiliate }
func (d PartnerDetails) Category() Category   { return CategoryPartner }
func (d UnknownDetails) Category() Category   { return d.Kind }

func (d BrandDetails) ContactInfo() Contact     { return d.Contact }
func (d InvestorDetails) ContactInfo() Contact  { return d.Contact }
func (d WholesaleDetails) ContactInfo() Contact { return d.Contact }
func (d AffiliateDetails) ContactInfo() Contact { return d.Contact }
func (d PartnerDetails) ContactInfo() Contact   { return d.Contact }
func (d UnknownDetails) ContactInfo() Contact   { return d.Contact }

func (d BrandDetails) nameFields() ([]string, string) {
	return []string{d.BrandName, d.BusinessName}, ""
}

func (d InvestorDetails) nameFields() ([]string, string) {
	return nil, d.OrganizationName
}

func (d WholesaleDetails) nameFields() ([]string, string) {
	return []string{d.BusinessName}, ""
}

func (d AffiliateDetails) nameFields() ([]string, string) {
	return nil, ""
}

func (d PartnerDetails) nameFields() ([]string, string) {
	return []string{d.BusinessName}, d.OrganizationName
}

func (d UnknownDetails) nameFields() ([]string, string) {
	return []string{stringAttr(d.Extra, "brand_name"), stringAttr(d.Extra, "business_name")},
		stringAttr(d.Extra, "organization_name")
}

// DisplayName applies the precedence brand/business name, organization
// name, first+last name, then "N/A".
func DisplayName(d Details) string {
	business, organization := d.nameFields()
	for _, name := range business {
		if n := strings.TrimSpace(name); n != "" {
			return n
		}
	}
	if n := strings.TrimSpace(organization); n != "" {
		return n
	}
	if n := d.ContactInfo().FullName(); n != "" {
		return n
	}
	return notAvailable
}

func stringAttr(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

type applicationWire struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category"`
	Status      Status          `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
}

func (a Application) MarshalJSON() ([]byte, error) {
	w := applicationWire{
		ID:          a.ID,
		Category:    a.Category(),
		Status:      a.Status,
		SubmittedAt: a.SubmittedAt,
		ApprovedAt:  a.ApprovedAt,
		RejectedAt:  a.RejectedAt,
	}
	if a.Details != nil {
		attrs, err := encodeDetails(a.Details)
		if err != nil {
			return nil, err
		}
		w.Attributes = attrs
	}
	return json.Marshal(w)
}

func (a *Application) UnmarshalJSON(data []byte) error {
	var w applicationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	details, err := decodeDetails(w.Category, w.Attributes)
	if err != nil {
		return fmt.Errorf("application %s attributes: %w", w.ID, err)
	}
	*a = Application{
		ID:          w.ID,
		Status:      w.Status,
		SubmittedAt: w.SubmittedAt,
		ApprovedAt:  w.ApprovedAt,
		RejectedAt:  w.RejectedAt,
		Details:     details,
	}
	return nil
}

func decodeDetails(category Category, raw json.RawMessage) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch category {
	case CategoryBrand:
		return decodeVariant[BrandDetails](raw)
	case CategoryInvestor:
		return decodeVariant[InvestorDetails](raw)
	case CategoryWholesale:
		return decodeVariant[WholesaleDetails](raw)
	case CategoryAffiliate:
		return decodeVariant[AffiliateDetails](raw)
	case CategoryPartner:
		return decodeVariant[PartnerDetails](raw)
	default:
		d := UnknownDetails{Kind: category}
		if err := json.Unmarshal(raw, &d.Contact); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &d.Extra); err != nil {
			return nil, err
		}
		return d, nil
	}
}

func decodeVariant[T Details](raw json.RawMessage) (Details, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func encodeDetails(d Details) (json.RawMessage, error) {
	if u, ok := d.(UnknownDetails); ok {
		merged := make(map[string]any, len(u.Extra)+5)
		for k, v := range u.Extra {
			merged[k] = v
		}
		contact, err := json.Marshal(u.Contact)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contact, &merged); err != nil {
			return nil, err
		}
		return json.Marshal(merged)
	}
	return json.Marshal(d)
}
