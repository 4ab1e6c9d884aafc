package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func storedProfile() Profile {
	return Profile{
		ID:           "u1",
		Name:         "Alice",
		Email:        "alice@uni.example",
		Role:         "student",
		FieldOfStudy: "Physics",
		AvatarURL:    "https://cdn.example/avatars/u1",
		Verified:     true,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyEditsNameOnly(t *testing.T) {
	got := applyEdits(storedProfile(), UpdateProfileRequest{Name: "Alicia"})

	assert.Equal(t, "Alicia", got.Name)
	assert.Equal(t, "Physics", got.FieldOfStudy)
	assert.Equal(t, "alice@uni.example", got.Email)
}

func TestApplyEditsFieldOfStudyOnly(t *testing.T) {
	got := applyEdits(storedProfile(), UpdateProfileRequest{FieldOfStudy: "Maths"})

	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "Maths", got.FieldOfStudy)
}

func TestApplyEditsEmptyFieldsKeepStoredValues(t *testing.T) {
	got := applyEdits(storedProfile(), UpdateProfileRequest{})

	assert.Equal(t, storedProfile(), got)
}

func TestApplyEditsNeverTouchesProtectedFields(t *testing.T) {
	// The request type only carries the two editable fields, so email,
	// role, verified and avatar cannot change through an update.
	got := applyEdits(storedProfile(), UpdateProfileRequest{Name: "X", FieldOfStudy: "Y"})

	want := storedProfile()
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.Verified, got.Verified)
	assert.Equal(t, want.AvatarURL, got.AvatarURL)
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
}
