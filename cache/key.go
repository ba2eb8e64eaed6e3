package cache

import (
	"errors"
	"fmt"
)

type Key struct {
	// Prefix - Helps better grouping and searching
	// i.e entity + purpose
	Prefix string
	// Suffix - optional
	Suffix string
}

var (
	ErrorInvalidPrefix = errors.New("invalid key prefix")
	ErrorInvalidKey    = errors.New("invalid redis cache key")
)

func NewKey(prefix string, suffix string) (*Key, error) {
	if prefix == "" {
		return nil, ErrorInvalidPrefix
	}
	return &Key{Prefix: prefix, Suffix: suffix}, nil
}

// Key i.e, lock:attribution:compute:j1:m1
func (key *Key) Key() (string, error) {
	if key == nil {
		return "", ErrorInvalidKey
	}
	if key.Prefix == "" {
		return "", ErrorInvalidPrefix
	}
	if key.Suffix == "" {
		return key.Prefix, nil
	}
	return fmt.Sprintf("%s:%s", key.Prefix, key.Suffix), nil
}
