package domain

import "errors"

// Sentinel errors used throughout the application.
// Components wrap these with %w; callers classify with errors.Is.
var (
	ErrDecode       = errors.New("decode payload")
	ErrRPC          = errors.New("rpc call failed")
	ErrAddressParse = errors.New("parse mail address")
	ErrBuild        = errors.New("build mail message")
	ErrTransport    = errors.New("mail transport")

	ErrNotFound      = errors.New("not found")
	ErrInvalidFilter = errors.New("invalid filter: status must be done, failed, skipped or dropped")
)

// Reason maps an error to the short label used in logs, metrics and the
// delivery log. Unknown errors map to "internal_error".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrRPC):
		return "rpc_error"
	case errors.Is(err, ErrAddressParse):
		return "address_parse_error"
	case errors.Is(err, ErrBuild):
		return "build_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	}
	return "internal_error"
}
