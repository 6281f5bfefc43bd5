package api

import (
	"context"
	"net/http"

	"chatline/internal/domain"
	"chatline/internal/infra/tracer"
)

// Signup registers a new user. A 400 answer means the name is taken.
func (c *Client) Signup(ctx context.Context, creds domain.Credentials) error {
	return c.credentialCall(ctx, "/signup", "Client.Signup", creds, statusRemap{
		http.StatusBadRequest: domain.ErrDuplicate,
	})
}

// Login checks the user's credentials. The service issues no token; success
// only confirms the identity.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) error {
	return c.credentialCall(ctx, "/login", "Client.Login", creds, nil)
}

func (c *Client) credentialCall(ctx context.Context, path, op string, creds domain.Credentials, remap statusRemap) error {
	ctx, span := tracer.StartClientSpan(ctx, "api"+path, tracer.StringAttr("user", creds.Username))
	defer span.End()

	req, err := c.newJSONRequest(ctx, http.MethodPost, path, nil, creds)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if err := c.do(ctx, req, remap, nil); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp(op, err)
	}
	tracer.SetOK(span)
	return nil
}
