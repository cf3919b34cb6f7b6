package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/famorg/internal/model"
)

func requireAPIError(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	require.Error(t, err)
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected *model.APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestRequireOwnership_DirectMode(t *testing.T) {
	const id = "7b2c6f3e-4a1d-4c8e-9f00-1234567890ab"
	tests := []struct {
		name      string
		userID    string
		createdBy string
		wantErr   bool
	}{
		{"same id", "u1", "u1", false},
		{"different id", "u1", "u2", true},
		{"uuid case differs", id, "7B2C6F3E-4A1D-4C8E-9F00-1234567890AB", false},
		{"uuid urn form", id, "urn:uuid:" + id, false},
		{"surrounding space", "u1", " u1 ", false},
		{"empty caller", "", "u1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireOwnership(context.Background(), OwnershipCheck{UserID: tt.userID, CreatedBy: tt.createdBy})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			apiErr := requireAPIError(t, err, model.ErrCodeForbidden)
			assert.Equal(t, "You do not have permission to access this resource", apiErr.Message)
		})
	}
}

func TestRequireOwnership_DirectModeSkipsLookup(t *testing.T) {
	called := false
	err := RequireOwnership(context.Background(), OwnershipCheck{
		UserID:     "u1",
		CreatedBy:  "u1",
		ResourceID: "r1",
		Lookup: func(context.Context, string) (*Owned, error) {
			called = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRequireOwnership_LookupMode(t *testing.T) {
	lookup := func(_ context.Context, id string) (*Owned, error) {
		if id == "r1" {
			return &Owned{CreatedBy: "u1"}, nil
		}
		return nil, nil
	}

	t.Run("owner", func(t *testing.T) {
		err := RequireOwnership(context.Background(), OwnershipCheck{UserID: "u1", ResourceID: "r1", Lookup: lookup})
		assert.NoError(t, err)
	})

	t.Run("not owner", func(t *testing.T) {
		err := RequireOwnership(context.Background(), OwnershipCheck{UserID: "u2", ResourceID: "r1", Lookup: lookup})
		requireAPIError(t, err, model.ErrCodeForbidden)
	})

	t.Run("missing resource is not found for anyone", func(t *testing.T) {
		for _, user := range []string{"u1", "u2", ""} {
			err := RequireOwnership(context.Background(), OwnershipCheck{UserID: user, ResourceID: "missing", Lookup: lookup})
			apiErr := requireAPIError(t, err, model.ErrCodeNotFound)
			assert.Equal(t, "Resource not found", apiErr.Message)
		}
	})
}

func TestRequireOwnership_LookupError(t *testing.T) {
	boom := errors.New("db down")
	err := RequireOwnership(context.Background(), OwnershipCheck{
		UserID:     "u1",
		ResourceID: "r1",
		Lookup: func(context.Context, string) (*Owned, error) {
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)
	var apiErr *model.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestRequireOwnership_Misconfigured(t *testing.T) {
	tests := []OwnershipCheck{
		{UserID: "u1"},
		{UserID: "u1", ResourceID: "r1"},
		{UserID: "u1", Lookup: func(context.Context, string) (*Owned, error) { return nil, nil }},
	}
	for _, in := range tests {
		err := RequireOwnership(context.Background(), in)
		require.ErrorIs(t, err, ErrMisconfiguredCheck)
		var apiErr *model.APIError
		assert.False(t, errors.As(err, &apiErr), "misconfiguration must not be reported as 403")
	}
}
