package gig

import "time"

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

// Gig is the canonical shared record. BandID nil means a personal gig;
// non-nil means the gig belongs to that band and is visible to its members.
// BandName is a free-text display label, not a reference into bands.
type Gig struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   string    `gorm:"type:uuid;index;not null" json:"owner_id"`
	BandID    *string   `gorm:"type:uuid;index" json:"band_id"`
	Title     string    `gorm:"not null" json:"title"`
	Date      string    `gorm:"type:char(10);not null" json:"date"`
	Location  string    `gorm:"not null;default:''" json:"location"`
	Value     *float64  `gorm:"type:numeric(12,2)" json:"value"`
	Status    Status    `gorm:"type:varchar(8);not null;default:'PENDING'" json:"status"`
	Notes     string    `gorm:"not null;default:''" json:"notes"`
	BandName  string    `gorm:"not null;default:''" json:"band_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Override is a per-viewer patch over a shared gig. A nil field inherits the
// shared value; Hidden suppresses the gig from that viewer's personal view.
// At most one row exists per (viewer, gig).
type Override struct {
	ViewerID  string    `gorm:"type:uuid;primaryKey" json:"viewer_id"`
	GigID     string    `gorm:"type:uuid;primaryKey" json:"gig_id"`
	Title     *string   `json:"title"`
	Value     *float64  `gorm:"type:numeric(12,2)" json:"value"`
	Status    *Status   `gorm:"type:varchar(8)" json:"status"`
	Notes     *string   `json:"notes"`
	Hidden    bool      `gorm:"not null;default:false" json:"hidden"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Override) TableName() string {
	return "personal_overrides"
}

// VisibleGig is the merged projection exposed to aggregation and transport.
type VisibleGig struct {
	Gig
	Overridden bool `json:"overridden"`
}

type CreateInput struct {
	Title    string
	Date     string
	Location string
	Value    *float64
	Status   Status
	Notes    string
	BandName string
}

// OptionalValue distinguishes "leave the amount alone" (Set false) from
// "clear the amount back to unset" (Set true, Value nil).
type OptionalValue struct {
	Set   bool
	Value *float64
}

// UpdatePatch is a partial update of the shared row. Nil pointer fields are
// left unchanged.
type UpdatePatch struct {
	Title    *string
	Date     *string
	Location *string
	Value    OptionalValue
	Status   *Status
	Notes    *string
	BandName *string
}

// OverridePatch is a full write of the per-viewer overlay: every overridable
// field is persisted as given, nil clearing that field back to inherit.
type OverridePatch struct {
	Title  *string
	Value  *float64
	Status *Status
	Notes  *string
	Hidden bool
}
