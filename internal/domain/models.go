// Package domain defines the persistence models for users, projects,
// calculations, and messages. These types are mapped with GORM and form the
// core data layer of the bot.
package domain

import "time"

// Role is the access tier assigned to a user. It gates which menus and
// flows the user may invoke.
type Role string

// Role values. Transitions: pending→worker, pending→rejected, or any→admin
// (forced whenever the external id is on the admin allow-list).
const (
	RolePending  Role = "pending"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
	RoleRejected Role = "rejected"
)

// User represents a chat-platform user known to the bot. The primary key is
// the externally assigned platform id; rows are created on first contact and
// never deleted.
//
// Fields:
//   - ID: external user id (assigned by the chat platform).
//   - Username / FirstName / LastName: profile data captured on contact.
//   - Role: access tier; see Role constants.
//   - AccessRequestedAt: set when the user files an access request; repeat
//     requests while still pending are deflected without renotifying admins.
//   - RegisteredAt: first-contact timestamp.
type User struct {
	ID                int64      `json:"id"            gorm:"primaryKey;autoIncrement:false"`
	Username          string     `json:"username"      gorm:"type:varchar(64)"`
	FirstName         string     `json:"first_name"    gorm:"type:varchar(128)"`
	LastName          string     `json:"last_name"     gorm:"type:varchar(128)"`
	Role              Role       `json:"role"          gorm:"type:varchar(16);not null;index;check:role IN ('pending','worker','admin','rejected')"`
	AccessRequestedAt *time.Time `json:"access_requested_at,omitempty"`
	RegisteredAt      time.Time  `json:"registered_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName returns the user's full name for operator-facing texts.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Project represents a job site. Projects are created only through the
// admin intake flow and are immutable afterwards. Address is used by the UI
// as a de-facto lookup key; uniqueness is not enforced and address lookup is
// first-match by recency.
type Project struct {
	ID            uint      `json:"id"              gorm:"primaryKey"`
	Address       string    `json:"address"         gorm:"type:varchar(255);not null;index"`
	Description   string    `json:"description"     gorm:"type:text"`
	DesignPDFPath string    `json:"design_pdf_path" gorm:"type:varchar(512)"` // empty when no attachment
	LockCode      string    `json:"lock_code"       gorm:"type:varchar(64)"`
	CreatedBy     int64     `json:"created_by"      gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at"      gorm:"index"`

	Creator User `json:"-" gorm:"foreignKey:CreatedBy;references:ID"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string { return "projects" }

// Calculation is a persisted material-quantity computation. ProjectID is
// nil until (and unless) the user links the result to a project right after
// the calculator flow completes.
type Calculation struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	UserID       int64     `json:"user_id"       gorm:"not null;index"`
	ProjectID    *uint     `json:"project_id,omitempty" gorm:"index"`
	MaterialType string    `json:"material_type" gorm:"type:varchar(64);not null"`
	Area         float64   `json:"area"          gorm:"not null"`
	Thickness    float64   `json:"thickness"` // 0 for thickness-independent materials
	Quantity     float64   `json:"quantity"      gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`

	Project *Project `json:"-" gorm:"foreignKey:ProjectID;references:ID"`
}

// TableName returns the database table name for Calculation.
func (Calculation) TableName() string { return "calculations" }

// Message is a short note delivered from one user to another (worker to
// admin, or a persisted notification). Read via recipient-scoped,
// reverse-chronological queries.
type Message struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	SenderID    int64     `json:"sender_id"    gorm:"not null;index"`
	RecipientID int64     `json:"recipient_id" gorm:"not null;index:idx_recipient_sent,priority:1"`
	Text        string    `json:"text"         gorm:"type:text;not null"`
	SentAt      time.Time `json:"sent_at"      gorm:"index:idx_recipient_sent,priority:2"`

	Sender User `json:"-" gorm:"foreignKey:SenderID;references:ID"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ProcessedUpdate records a webhook update id that has already been handled,
// so platform redeliveries are dropped instead of replayed into dialogues.
// Rows expire after a TTL and are lazily purged.
type ProcessedUpdate struct {
	UpdateID  int64     `json:"update_id" gorm:"primaryKey;autoIncrement:false"`
	SeenAt    time.Time `json:"seen_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
