package blockhub

import (
	"context"
	"fmt"
)

type LinkAccountRequest struct {
	Username         string
	Strategy         Strategy
	ExternalUsername string
	Secret           string
}

func (svc *service) LinkAccount(ctx context.Context, requestor string, req LinkAccountRequest) error {
	if req.Username == "" {
		return missingArgument("username")
	}
	if req.Strategy == nil {
		return missingArgument("strategy")
	}
	if req.ExternalUsername == "" || req.Secret == "" {
		return missingArgument("credentials")
	}

	if err := svc.checker.EnsureAuthorized(ctx, requestor, WriteUser(req.Username)); err != nil {
		return err
	}

	if err := req.Strategy.Authenticate(ctx, req.ExternalUsername, req.Secret); err != nil {
		return err
	}

	acc := LinkedAccount{Username: req.ExternalUsername, Type: req.Strategy.Type()}
	existing, err := svc.users.FindByLinkedAccount(ctx, acc)
	if err != nil {
		return fmt.Errorf("error finding linked user: %w", err)
	}
	if existing != nil {
		return requestError("%s account %s is already linked to a user", acc.Type, acc.Username)
	}

	matched, err := svc.users.AddLinkedAccount(ctx, req.Username, acc)
	if err != nil {
		return fmt.Errorf("error linking account: %w", err)
	}
	if matched == 0 {
		return userNotFound(req.Username)
	}

	svc.log.WithField("username", req.Username).WithField("strategy", acc.Type).Info("account linked")
	return nil
}

// UnlinkAccount only fails when the user is missing. Removing an entry the
// user never had succeeds.
func (svc *service) UnlinkAccount(ctx context.Context, requestor, username string, acc LinkedAccount) error {
	if username == "" {
		return missingArgument("username")
	}

	if err := svc.checker.EnsureAuthorized(ctx, requestor, WriteUser(username)); err != nil {
		return err
	}

	matched, err := svc.users.RemoveLinkedAccount(ctx, username, acc)
	if err != nil {
		return fmt.Errorf("error unlinking account: %w", err)
	}
	if matched == 0 {
		return userNotFound(username)
	}
	return nil
}
