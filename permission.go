package blockhub

import (
	"context"
	"fmt"
)

type Action string

const (
	ActionReadUser   Action = "user:read"
	ActionWriteUser  Action = "user:write"
	ActionDeleteUser Action = "user:delete"
	ActionWriteGroup Action = "group:write"
)

// Permission is an action on a target resource. Only the constructors below
// produce valid permissions.
type Permission struct {
	Action Action
	Target string
}

func ReadUser(username string) Permission   { return Permission{ActionReadUser, username} }
func WriteUser(username string) Permission  { return Permission{ActionWriteUser, username} }
func DeleteUser(username string) Permission { return Permission{ActionDeleteUser, username} }
func WriteGroup(groupID string) Permission  { return Permission{ActionWriteGroup, groupID} }

func (p Permission) String() string {
	return fmt.Sprintf("%s(%s)", p.Action, p.Target)
}

// PermissionChecker decides whether requestor may exercise p. Denials must
// wrap ErrNotAuthorized.
type PermissionChecker interface {
	EnsureAuthorized(ctx context.Context, requestor string, p Permission) error
}

type requestorKey struct{}

// WithRequestor returns a context carrying the authenticated username that
// issues the request.
func WithRequestor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, requestorKey{}, username)
}

// RequestorFrom returns the requestor stored by WithRequestor, or "" for
// anonymous requests.
func RequestorFrom(ctx context.Context) string {
	username, _ := ctx.Value(requestorKey{}).(string)
	return username
}
