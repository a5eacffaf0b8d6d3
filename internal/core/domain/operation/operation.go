package operation

// Name identifies an engine operation. It keys rate-limit policies, audit entries and metrics.
type Name string

const (
	CreateCode         Name = "create_code"
	ValidateCode       Name = "validate_code"
	Redeem             Name = "redeem"
	Remove             Name = "remove"
	RevokeCode         Name = "revoke_code"
	ExpireCode         Name = "expire_code"
	RegisterProperty   Name = "register_property"
	UpdateUnitCapacity Name = "update_unit_capacity"

	// read models, never rate limited
	ReadAssociation Name = "read_association"
	ReadRoster      Name = "read_roster"
)

func (n Name) String() string {
	return string(n)
}

// All lists every operation that can be rate limited.
func All() []Name {
	return []Name{CreateCode, ValidateCode, Redeem, Remove, RevokeCode, RegisterProperty, UpdateUnitCapacity}
}
