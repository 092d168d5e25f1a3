package auth

import (
	"context"
	"fmt"

	"github.com/jimiolaniyan/blockhub"
)

// AdminChecker grants every permission to admins and lets other users read,
// write and delete only their own account. Group writes are admin only.
type AdminChecker struct {
	admins map[string]bool
}

func NewAdminChecker(admins ...string) *AdminChecker {
	c := &AdminChecker{admins: map[string]bool{}}
	for _, a := range admins {
		if a != "" {
			c.admins[a] = true
		}
	}
	return c
}

func (c *AdminChecker) EnsureAuthorized(ctx context.Context, requestor string, p blockhub.Permission) error {
	if requestor != "" && c.admins[requestor] {
		return nil
	}

	switch p.Action {
	case blockhub.ActionReadUser, blockhub.ActionWriteUser, blockhub.ActionDeleteUser:
		if requestor != "" && requestor == p.Target {
			return nil
		}
	}

	return fmt.Errorf("%w: %q may not %s", blockhub.ErrNotAuthorized, requestor, p)
}
