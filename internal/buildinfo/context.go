// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"github.com/google/uuid"
)

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Values injected with -ldflags "-X .../buildinfo.version=..."
var (
	version   string
	buildDate string
)

// BuildInfo provides read access to build-time metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetInstanceID() string
}

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// InstanceID identifies this process in logs and telemetry
	InstanceID string
}

// NewContext creates a build context with a fresh instance id.
func NewContext(version, buildDate string) *Context {
	return &Context{
		Version:    version,
		BuildDate:  buildDate,
		InstanceID: uuid.NewString(),
	}
}

// Current returns the context for the running binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetInstanceID implements BuildInfo.GetInstanceID
func (c *Context) GetInstanceID() string {
	if c == nil || c.InstanceID == "" {
		return UnknownValue
	}
	return c.InstanceID
}
