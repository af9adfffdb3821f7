package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))

	h := NewCRC32C()
	_, _ = h.Write([]byte("1234"))
	_, _ = h.Write([]byte("56789"))
	assert.Equal(t, uint32(0xE3069283), h.Sum32())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"ds-1", "ds-2"})
	assert.Equal(t, a, Fingerprint([]string{"ds-1", "ds-2"}))
	assert.NotEqual(t, a, Fingerprint([]string{"ds-2", "ds-1"}))
	assert.NotEqual(t, Fingerprint([]string{"ab", "c"}), Fingerprint([]string{"a", "bc"}))
	assert.NotEqual(t, Fingerprint(nil), Fingerprint([]string{""}))
}
