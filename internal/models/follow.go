package models

import "time"

// Follow is a directed edge: the follower receives the author's posts in
// their personalized feed. The composite unique index makes repeated follow
// attempts idempotent at the store boundary; self-follows are rejected by
// the service layer before a row is ever written.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_edge" json:"follower_id"`
	Follower   User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID   uint      `gorm:"not null;uniqueIndex:idx_follow_edge;index" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Follow) TableName() string {
	return "follows"
}
