package install

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// Default version pins for the provisioned tools.
const (
	DefaultNvmVersion     = "v0.40.3"
	DefaultNodeVersion    = "v22.14.0"
	DefaultComposeVersion = "v2.32.4"
)

const (
	invalidToolVersionMessageConstant = "tool version is not valid semantic version"
	nvmVersionFieldNameConstant       = "nvm_version"
	nodeVersionFieldNameConstant      = "node_version"
	composeVersionFieldNameConstant   = "compose_version"
	toolVersionErrorTemplateConstant  = "%w: %s=%s"
)

// ErrInvalidToolVersion indicates a configured version pin that is not valid
// semantic versioning.
var ErrInvalidToolVersion = errors.New(invalidToolVersionMessageConstant)

// ToolVersions carries the version pins consumed by installer tasks. The
// Docker package pin follows apt version syntax rather than semantic
// versioning and may be empty, selecting the newest package in the registered
// repository.
type ToolVersions struct {
	NvmVersion           string
	NodeVersion          string
	ComposeVersion       string
	DockerPackageVersion string
}

// DefaultToolVersions returns the built-in version pins.
func DefaultToolVersions() ToolVersions {
	return ToolVersions{
		NvmVersion:     DefaultNvmVersion,
		NodeVersion:    DefaultNodeVersion,
		ComposeVersion: DefaultComposeVersion,
	}
}

// Validate rejects semver-shaped pins that are not valid semantic versions so
// misconfiguration fails before any task launches.
func (versions ToolVersions) Validate() error {
	semverPins := []struct {
		fieldName string
		value     string
	}{
		{fieldName: nvmVersionFieldNameConstant, value: versions.NvmVersion},
		{fieldName: nodeVersionFieldNameConstant, value: versions.NodeVersion},
		{fieldName: composeVersionFieldNameConstant, value: versions.ComposeVersion},
	}

	for _, pin := range semverPins {
		if !semver.IsValid(pin.value) {
			return fmt.Errorf(toolVersionErrorTemplateConstant, ErrInvalidToolVersion, pin.fieldName, pin.value)
		}
	}
	return nil
}
