package buildinfo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		wantVer   string
		wantBuilt string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", &Context{}, UnknownValue, UnknownValue},
		{"release", NewContext("1.2.0", "2026-03-01"), "1.2.0", "2026-03-01"},
		{"pre-release", NewContext("1.3.0-rc.1", ""), "1.3.0-rc.1", UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantVer, tt.ctx.GetVersion())
			assert.Equal(t, tt.wantBuilt, tt.ctx.GetBuildDate())
		})
	}
}

func TestNewContextInstanceID(t *testing.T) {
	t.Parallel()

	a := NewContext("1.0.0", "")
	b := NewContext("1.0.0", "")

	_, err := uuid.Parse(a.GetInstanceID())
	require.NoError(t, err)
	assert.NotEqual(t, a.GetInstanceID(), b.GetInstanceID())

	var nilCtx *Context
	assert.Equal(t, UnknownValue, nilCtx.GetInstanceID())
}

func TestContextImplementsBuildInfo(t *testing.T) {
	t.Parallel()
	var _ BuildInfo = Current()
}
