package codec

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ricirt/updatesvc/internal/domain"
)

// FieldFunc handles one field whose tag has already been consumed. It returns
// the number of value bytes it consumed; returning 0 skips the field.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Walk iterates over the top-level fields of a message.
func Walk(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", domain.ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", domain.ErrDecode, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

// ConsumeBytes reads a length-delimited value.
func ConsumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(num, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: field %d: %v", domain.ErrDecode, num, protowire.ParseError(n))
	}
	return v, n, nil
}

// ConsumeString reads a length-delimited UTF-8 string.
func ConsumeString(num protowire.Number, typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := ConsumeBytes(num, typ, b)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(v) {
		return "", 0, fmt.Errorf("%w: field %d: invalid utf-8", domain.ErrDecode, num)
	}
	return string(v), n, nil
}

// ConsumeVarint reads a varint value.
func ConsumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(num, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: field %d: %v", domain.ErrDecode, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func wireTypeError(num protowire.Number, got, want protowire.Type) error {
	return fmt.Errorf("%w: field %d: wire type %d, want %d", domain.ErrDecode, num, got, want)
}
