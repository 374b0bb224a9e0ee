package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndList(t *testing.T) {
	data, err := Build([]File{
		{Name: "request.pdf", Content: []byte("pdf-bytes")},
		{Name: "license.jpg", Content: []byte("jpg-bytes")},
	})
	require.NoError(t, err)

	names, err := List(data)
	require.NoError(t, err)
	require.Equal(t, []string{"request.pdf", "license.jpg"}, names)
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}

func TestAppendKeepsExistingEntries(t *testing.T) {
	data, err := Build([]File{{Name: "request.pdf", Content: []byte("a")}})
	require.NoError(t, err)

	data, err = Append(data, []File{
		{Name: "missing_doc.png", Content: []byte("b")},
		{Name: "request.pdf", Content: []byte("c")},
	})
	require.NoError(t, err)

	names, err := List(data)
	require.NoError(t, err)
	require.Equal(t, []string{"request.pdf", "missing_doc.png", "request_1.pdf"}, names)
}

func TestAppendNothingIsNoOp(t *testing.T) {
	data, err := Build([]File{{Name: "request.pdf", Content: []byte("a")}})
	require.NoError(t, err)

	same, err := Append(data, nil)
	require.NoError(t, err)
	require.Equal(t, data, same)
}

func TestSanitizeStripsDirectories(t *testing.T) {
	data, err := Build([]File{{Name: "../escape/../../etc/passwd.pdf", Content: []byte("x")}})
	require.NoError(t, err)

	names, err := List(data)
	require.NoError(t, err)
	require.Equal(t, []string{"passwd.pdf"}, names)
}
