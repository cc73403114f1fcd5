package guest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewGuest_NormalizesEmail(t *testing.T) {
	g, err := NewGuest(CreateParams{ID: "g-1", Email: "  Jane.Doe@Example.COM ", Name: " Jane "})

	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", g.Email)
	assert.Equal(t, "Jane", g.Name)
}

func Test_NewGuest_Validation(t *testing.T) {
	_, err := NewGuest(CreateParams{ID: "g", Email: "not-an-email", Name: "x"})
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, err = NewGuest(CreateParams{ID: "g", Email: "a@b.io"})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = NewGuest(CreateParams{Email: "a@b.io", Name: "x"})
	assert.ErrorIs(t, err, ErrIDRequired)
}

func Test_Guest_Refresh(t *testing.T) {
	g, err := NewGuest(CreateParams{ID: "g", Email: "a@b.io", Name: "Ann", CreatedAt: time.Unix(0, 0)})
	require.NoError(t, err)
	later := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, g.Refresh("", "", later))
	assert.True(t, g.Refresh("Ann Lee", "+100", later))
	assert.Equal(t, "Ann Lee", g.Name)
	assert.Equal(t, "+100", g.Phone)
	assert.Equal(t, later, g.UpdatedAt)
}
