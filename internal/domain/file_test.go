package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtensionOf(t *testing.T) {
	require.Equal(t, "png", ExtensionOf("photo.PNG"))
	require.Equal(t, "jpeg", ExtensionOf("archive.tar.jpeg"))
	require.Equal(t, "pdf", ExtensionOf("report.pdf"))
	require.Equal(t, "", ExtensionOf("noext"))
	require.Equal(t, "", ExtensionOf(""))
}

func TestValidateExtension(t *testing.T) {
	allowed := []string{"jpg", "jpeg", "png", "pdf"}

	require.NoError(t, ValidateExtension("png", allowed))
	require.NoError(t, ValidateExtension("pdf", allowed))

	require.ErrorIs(t, ValidateExtension("exe", allowed), ErrUnsupportedFileType)
	require.ErrorIs(t, ValidateExtension("", allowed), ErrUnsupportedFileType)
}

func TestKindForExtension(t *testing.T) {
	require.Equal(t, KindPDF, KindForExtension("pdf"))
	require.Equal(t, KindImage, KindForExtension("jpg"))
	require.Equal(t, KindImage, KindForExtension("png"))
}

func TestContentTypeForExtension(t *testing.T) {
	require.Equal(t, "image/jpeg", ContentTypeForExtension("jpg"))
	require.Equal(t, "image/jpeg", ContentTypeForExtension("jpeg"))
	require.Equal(t, "image/png", ContentTypeForExtension("png"))
	require.Equal(t, "application/pdf", ContentTypeForExtension("pdf"))
}

func TestNewFileGeneratesDistinctStoredNames(t *testing.T) {
	a := NewFile("photo.png", "png", nil)
	b := NewFile("photo.png", "png", nil)

	require.NotEqual(t, a.StoredName, b.StoredName)
	require.NotEqual(t, a.ID, b.ID)
	require.Regexp(t, `\.png$`, a.StoredName)
	require.Equal(t, KindImage, a.Kind)
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{
			name:   "comma delimited with whitespace",
			values: []string{" vacation, beach ,vacation"},
			want:   []string{"vacation", "beach"},
		},
		{
			name:   "repeated fields",
			values: []string{"work", "docs", "work"},
			want:   []string{"work", "docs"},
		},
		{
			name:   "mixed",
			values: []string{"a,b", "b", " c "},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "empty input",
			values: nil,
			want:   []string{},
		},
		{
			name:   "only separators",
			values: []string{" , ,, "},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeTags(tt.values))
		})
	}
}

func TestHasAllTags(t *testing.T) {
	f := &File{Tags: []string{"vacation", "beach"}}

	require.True(t, f.HasAllTags(nil))
	require.True(t, f.HasAllTags([]string{"beach"}))
	require.True(t, f.HasAllTags([]string{"vacation", "beach"}))
	require.False(t, f.HasAllTags([]string{"beach", "work"}))
}
