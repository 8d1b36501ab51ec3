package store

import "context"

// The relay consumes persistence through these three interfaces. Lookups
// report absence as (nil, nil) rather than an error.

type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	// UpdateStatus writes the new status and returns the updated user, or
	// (nil, nil) when no such user exists.
	UpdateStatus(ctx context.Context, id string, status Status) (*User, error)
}

type GroupStore interface {
	// FindByID returns the group with its member list populated.
	FindByID(ctx context.Context, id string) (*Group, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *Message) (*Message, error)
	// FindByIDWithSender returns the message with its Sender relation
	// populated (name projection).
	FindByIDWithSender(ctx context.Context, id string) (*Message, error)
}
