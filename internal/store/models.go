package store

import (
	"time"

	"github.com/uptrace/bun"
)

type Status string

const (
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID     string `bun:",pk" json:"_id"`
	Name   string `bun:",notnull" json:"name"`
	Email  string `bun:",unique" json:"email"`
	Status Status `bun:",notnull,default:'Offline'" json:"status"`

	// PublicKey is the base64-encoded X25519 key direct messages are
	// encrypted against. Key generation happens client-side; the relay only
	// reads it.
	PublicKey string `bun:",notnull" json:"publicKey"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID        string         `bun:",pk" json:"_id"`
	Name      string         `bun:",notnull" json:"name"`
	CreatorID string         `bun:",notnull" json:"creator"`
	Members   []*GroupMember `bun:"rel:has-many,join:id=group_id" json:"members"`
	CreatedAt time.Time      `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Member returns the membership record for userID, if any.
func (g *Group) Member(userID string) (*GroupMember, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return nil, false
}

func (g *Group) IsMember(userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	GroupID         string    `bun:",pk" json:"groupId"`
	UserID          string    `bun:",pk" json:"userId"`
	CanSendMessages bool      `bun:",notnull,default:true" json:"canSendMessages"`
	JoinedAt        time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"joinedAt"`
}

// Message is the durable record of a direct or group text message. Exactly
// one of RecipientID/GroupID is set. EncryptedContent is present only on
// direct messages.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID               string    `bun:",pk" json:"_id"`
	SenderID         string    `bun:",notnull" json:"sender"`
	Sender           *User     `bun:"rel:belongs-to,join:sender_id=id" json:"-"`
	RecipientID      string    `bun:",nullzero" json:"recipient,omitempty"`
	GroupID          string    `bun:",nullzero" json:"group,omitempty"`
	PlaintextContent string    `bun:"" json:"plaintextContent"`
	EncryptedContent string    `bun:",nullzero" json:"encryptedContent,omitempty"`
	TempID           string    `bun:"" json:"tempId,omitempty"`
	Timestamp        time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"timestamp"`
}
