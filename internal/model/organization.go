package model

// Organization type constants
const (
	OrgTypeClinic   = "clinic"
	OrgTypeHospital = "hospital"
	OrgTypeLab      = "lab"
	OrgTypePharmacy = "pharmacy"
)

// Organization is the tenant boundary. Every protected resource belongs
// to exactly one organization.
type Organization struct {
	Base
	Name      string  `json:"name" db:"name"`
	Subdomain string  `json:"subdomain" db:"subdomain"`
	Type      string  `json:"type" db:"type"`
	Active    bool    `json:"active" db:"active"`
	LogoURL   *string `json:"logo_url,omitempty" db:"logo_url"`
	ThemeHex  *string `json:"theme_hex,omitempty" db:"theme_hex"`
}

// CreateOrganizationRequest represents organization creation parameters
type CreateOrganizationRequest struct {
	Name      string `json:"name" binding:"required"`
	Subdomain string `json:"subdomain" binding:"required,hostname_rfc1123"`
	Type      string `json:"type" binding:"required,oneof=clinic hospital lab pharmacy"`
	LogoURL   string `json:"logo_url" binding:"omitempty,url"`
}
