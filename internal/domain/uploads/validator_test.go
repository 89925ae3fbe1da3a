package uploads

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1 << 20

func TestValidate(t *testing.T) {
	v := NewValidator(10*mb, []string{"rbxm", ".PNG"})

	tests := []struct {
		name       string
		fileName   string
		size       int64
		wantReason string
	}{
		{"ok", "model.rbxm", 2 * mb, ""},
		{"exactly at limit", "model.rbxm", 10 * mb, ""},
		{"too large", "model.rbxm", 11 * mb, ReasonTooLarge},
		{"bad extension", "model.exe", 1024, ReasonInvalidType},
		{"size checked before extension", "model.exe", 11 * mb, ReasonTooLarge},
		{"extension is case-insensitive", "Icon.Png", 10, ""},
		{"only last extension counts", "model.rbxm.exe", 10, ReasonInvalidType},
		{"no extension", "model", 10, ReasonInvalidType},
		{"trailing dot", "model.", 10, ReasonInvalidType},
		{"dot in directory", "dir.rbxm/model", 10, ReasonInvalidType},
		{"hidden file with allowed ext", ".rbxm", 10, ""},
		{"negative size", "model.rbxm", -1, ReasonInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.fileName, tt.size)
			if tt.wantReason == "" {
				require.NoError(t, err)
				return
			}
			var rej *Rejected
			require.True(t, errors.As(err, &rej), "want *Rejected, got %v", err)
			assert.Equal(t, tt.wantReason, rej.Reason)
		})
	}
}

func TestSessionExpired(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{UserID: "u1", CreatedAt: start}

	assert.False(t, s.Expired(start.Add(5*time.Minute), 10*time.Minute))
	assert.True(t, s.Expired(start.Add(11*time.Minute), 10*time.Minute))
	assert.False(t, s.Expired(start.Add(24*time.Hour), 0))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode(" Script ")
	assert.True(t, ok)
	assert.Equal(t, ModeScript, m)

	_, ok = ParseMode("plugin")
	assert.False(t, ok)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "uploads/u1/upload_x.rbxm", ObjectKey("u1", "upload_x", "My Model.RBXM"))
}
