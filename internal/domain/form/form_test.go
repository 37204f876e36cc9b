package form

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewForm(t *testing.T) {
	creator := uuid.New()

	t.Run("orders fields by explicit order then position", func(t *testing.T) {
		f, err := NewForm(creator, "  Intake  ", "desc", []FieldSpec{
			{Type: FieldTypeText, Label: "Name", Name: "name", Order: intPtr(5)},
			{Type: FieldTypeEmail, Label: "Email", Name: "email"},
			{Type: FieldTypeFiles, Label: "Scans", Name: "scans", Order: intPtr(2)},
		})

		require.NoError(t, err)
		assert.Equal(t, "Intake", f.Title)
		require.Len(t, f.Fields, 3)
		assert.Equal(t, "email", f.Fields[0].Name)
		assert.Equal(t, "scans", f.Fields[1].Name)
		assert.Equal(t, "name", f.Fields[2].Name)
		for _, field := range f.Fields {
			assert.Equal(t, f.ID, field.FormID)
			assert.NotEqual(t, uuid.Nil, field.ID)
		}
	})

	t.Run("requires title", func(t *testing.T) {
		_, err := NewForm(creator, "", "", nil)
		assert.Contains(t, err.Error(), "title cannot be empty")
	})

	t.Run("requires creator", func(t *testing.T) {
		_, err := NewForm(uuid.Nil, "T", "", nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate field names", func(t *testing.T) {
		_, err := NewForm(creator, "T", "", []FieldSpec{
			{Type: FieldTypeText, Label: "A", Name: "a"},
			{Type: FieldTypeText, Label: "B", Name: "a"},
		})
		assert.Contains(t, err.Error(), "unique")
	})

	t.Run("rejects incomplete field", func(t *testing.T) {
		_, err := NewForm(creator, "T", "", []FieldSpec{{Type: FieldTypeText, Name: "a"}})
		assert.Error(t, err)
	})
}

func TestForm_ReplaceFields(t *testing.T) {
	f, err := NewForm(uuid.New(), "T", "", []FieldSpec{{Type: FieldTypeText, Label: "A", Name: "a"}})
	require.NoError(t, err)
	oldID := f.Fields[0].ID

	require.NoError(t, f.ReplaceFields([]FieldSpec{
		{Type: FieldTypeSignature, Label: "Sign", Name: "sign", IsRequired: true},
	}))

	require.Len(t, f.Fields, 1)
	assert.NotEqual(t, oldID, f.Fields[0].ID)
	_, found := f.FieldByID(oldID)
	assert.False(t, found)
	field, found := f.FieldByID(f.Fields[0].ID)
	require.True(t, found)
	assert.True(t, field.IsRequired)
}

func TestFieldType_IsUpload(t *testing.T) {
	assert.True(t, FieldTypeFile.IsUpload())
	assert.True(t, FieldTypeFiles.IsUpload())
	assert.False(t, FieldTypeSignature.IsUpload())
}
