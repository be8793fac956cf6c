package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoqueryMetadataExtractor_ExtractsTitleAndDescription(t *testing.T) {
	html := `<html><head>
		<title>  Example Page  </title>
		<meta name="description" content="An example page.">
	</head><body></body></html>`

	e := NewGoqueryMetadataExtractor()
	meta, err := e.ExtractMetadata(html)
	require.NoError(t, err)

	assert.Equal(t, "Example Page", meta.Title)
	assert.Equal(t, "An example page.", meta.Description)
	assert.Equal(t, "text/html", meta.ContentType)
}

func TestGoqueryMetadataExtractor_FallsBackToOpenGraphDescription(t *testing.T) {
	html := `<html><head>
		<title>OG Page</title>
		<meta property="og:description" content="OG description.">
	</head><body></body></html>`

	e := NewGoqueryMetadataExtractor()
	meta, err := e.ExtractMetadata(html)
	require.NoError(t, err)
	assert.Equal(t, "OG description.", meta.Description)
}

func TestGoqueryMetadataExtractor_EmptyWhenAbsent(t *testing.T) {
	html := `<html><head></head><body><p>No title here</p></body></html>`

	e := NewGoqueryMetadataExtractor()
	meta, err := e.ExtractMetadata(html)
	require.NoError(t, err)
	assert.Equal(t, "", meta.Title)
	assert.Equal(t, "", meta.Description)
}
