package domain

// Account roles
const (
	RoleFarmer   = "farmer"   // Seller account
	RoleConsumer = "consumer" // Buyer account
)

// User Model
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`                       // Primary key
	Email     string `gorm:"size:191;uniqueIndex;not null" json:"email"` // Unique, lower-cased email
	Password  string `gorm:"not null" json:"-"`                          // Hashed password
	FullName  string `gorm:"size:120;not null" json:"full_name"`         // Display name
	Phone     string `gorm:"size:40" json:"phone"`                       // Contact phone
	Address   string `gorm:"size:500" json:"address"`                    // Default delivery address
	Role      string `gorm:"size:20;not null;index" json:"role"`         // Role: farmer or consumer
	FarmName  string `gorm:"size:120" json:"farm_name,omitempty"`        // Farmers only
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`     // Timestamp of creation in milliseconds
}

// ValidRole reports whether role is one a user may register with
func ValidRole(role string) bool {
	return role == RoleFarmer || role == RoleConsumer
}

// DisplayName is the name shown next to a farmer's products and orders
func (u User) DisplayName() string {
	if u.FarmName != "" {
		return u.FarmName
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "Unknown Farmer"
}

// PublicProfile is the part of a user other accounts may see
type PublicProfile struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	FarmName string `json:"farm_name,omitempty"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Since    int64  `json:"member_since"`
}

// Public strips credentials and private fields
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:       u.ID,
		FullName: u.FullName,
		FarmName: u.FarmName,
		Role:     u.Role,
		Phone:    u.Phone,
		Email:    u.Email,
		Since:    u.CreatedAt,
	}
}
