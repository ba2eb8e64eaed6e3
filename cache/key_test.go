package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	key, err := NewKey("lock", "attribution:compute:j1:m1")
	assert.Nil(t, err)
	cKey, err := key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "lock:attribution:compute:j1:m1", cKey)

	key, err = NewKey("lock", "")
	assert.Nil(t, err)
	cKey, err = key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "lock", cKey)

	_, err = NewKey("", "suffix")
	assert.Equal(t, ErrorInvalidPrefix, err)

	var nilKey *Key
	_, err = nilKey.Key()
	assert.Equal(t, ErrorInvalidKey, err)
}
