package band

import "time"

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// roleLevel orders roles for permission checks: owner ⊇ admin ⊇ member.
func roleLevel(role string) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Band is a shared calendar. Exactly one owner, fixed at creation; the owner
// row in band_members is written in the same transaction as the band itself.
type Band struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	OwnerID     string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Description string    `gorm:"not null;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Member struct {
	BandID   string    `gorm:"type:uuid;primaryKey" json:"band_id"`
	UserID   string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role     string    `gorm:"type:varchar(16);not null" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (Member) TableName() string {
	return "band_members"
}

const (
	InviteStatusPending   = "pending"
	InviteStatusAccepted  = "accepted"
	InviteStatusCancelled = "cancelled"
)

// Invite is an opaque-token membership offer. An empty Email means the link
// is open to whoever presents the token.
type Invite struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	BandID    string    `gorm:"type:uuid;not null;index" json:"band_id"`
	Email     string    `gorm:"not null;default:''" json:"email"`
	Token     string    `gorm:"type:uuid;not null;uniqueIndex" json:"token"`
	Status    string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedBy string    `gorm:"type:uuid;not null" json:"created_by"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Invite) TableName() string {
	return "band_invites"
}
