package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/ricirt/updatesvc/internal/domain"
)

const getQRCodeMethod = "/salesvc.Validation/GetQRCode"

// ValidationClient obtains signed codes from the validation service.
type ValidationClient struct {
	conn *Conn
}

// NewValidationClient dials the validation service lazily.
func NewValidationClient(target string, timeout time.Duration, opts ...grpc.DialOption) (*ValidationClient, error) {
	conn, err := Dial("validationsvc", target, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return &ValidationClient{conn: conn}, nil
}

// Sign returns a fresh signed code for the ticket in its current state.
// Codes are never cached: each call reaches the service.
func (c *ValidationClient) Sign(ctx context.Context, t domain.Ticket) ([]byte, error) {
	var resp QRCodeResponse
	if err := c.conn.invoke(ctx, getQRCodeMethod, &QRCodeRequest{Ticket: t}, &resp); err != nil {
		return nil, err
	}
	return resp.QR, nil
}

// Close tears down the underlying connection.
func (c *ValidationClient) Close() error { return c.conn.Close() }
