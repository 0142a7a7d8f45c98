package types

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Bytes is a byte count that reads and prints as a human string ("96 MiB").
type Bytes uint64

func (b Bytes) String() string {
	return humanize.IBytes(uint64(b))
}

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes) UnmarshalText(data []byte) error {
	return b.Set(string(data))
}

func (b *Bytes) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if err := b.Set(v); err != nil {
			return fmt.Errorf("invalid byte string %q: %w", v, err)
		}
	case uint64:
		*b = Bytes(v)
	case int64:
		*b = Bytes(max(0, v))
	case int:
		*b = Bytes(max(0, v))
	case float64:
		*b = Bytes(max(0, v))
	default:
		return fmt.Errorf("invalid byte size %v", raw)
	}
	return nil
}

func (b Bytes) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b Bytes) Int64() int64 {
	return int64(b)
}

// Set parses a human readable size such as "64 MiB" or "1GB".
func (b *Bytes) Set(value string) error {
	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return err
	}
	*b = Bytes(parsed)
	return nil
}
