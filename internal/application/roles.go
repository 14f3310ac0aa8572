package application

import "review-console/internal/domain"

var categoryRoles = map[domain.Category]domain.Role{
	domain.CategoryBrand:     domain.RoleVendor,
	domain.CategoryWholesale: domain.RoleVendor,
	domain.CategoryPartner:   domain.RoleVendor,
	domain.CategoryInvestor:  domain.RoleInvestor,
	domain.CategoryAffiliate: domain.RoleUser,
}

// ResolveRole maps an application category to the role of the account
// provisioned on approval. Unmapped categories get the plain user role.
func ResolveRole(category domain.Category) domain.Role {
	if role, ok := categoryRoles[category]; ok {
		return role
	}
	return domain.RoleUser
}
