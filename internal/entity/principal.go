package entity

type Role string

const (
	RoleClient Role = "client"
	RoleSeller Role = "seller"
)

// Principal is the caller as resolved by the identity layer. ProfileID is the
// client profile id for clients and the seller id for sellers.
type Principal struct {
	UserID    int64
	Role      Role
	ProfileID int64
	SessionID string
}

func (p Principal) IsClient() bool { return p.Role == RoleClient }
func (p Principal) IsSeller() bool { return p.Role == RoleSeller }

// OwnsAsClient reports whether p is the client of o.
func (p Principal) OwnsAsClient(o *SubOrder) bool {
	return p.IsClient() && o.ClientID == p.ProfileID
}

// OwnsAsSeller reports whether p is the seller of o.
func (p Principal) OwnsAsSeller(o *SubOrder) bool {
	return p.IsSeller() && o.SellerID == p.ProfileID
}
