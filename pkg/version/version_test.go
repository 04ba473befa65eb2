package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_ContainsAllFields(t *testing.T) {
	s := String()

	assert.Contains(t, s, "vab")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, runtime.Version())
}

func TestShort_ReturnsVersionOnly(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGet_PopulatesPlatform(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
