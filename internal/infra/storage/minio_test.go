package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL_KeepsConfiguredScheme(t *testing.T) {
	secure, err := url.Parse("https://minio.example.com:9000")
	require.NoError(t, err)
	assert.Equal(t,
		"https://minio.example.com:9000/analisis/abc_logo.png",
		objectURL(secure, "analisis", "abc_logo.png"))

	plain, err := url.Parse("http://localhost:9000")
	require.NoError(t, err)
	assert.Equal(t,
		"http://localhost:9000/analisis/abc_logo.png",
		objectURL(plain, "analisis", "abc_logo.png"))
}
