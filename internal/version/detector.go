// Package version resolves the application version from embedded build
// metadata.
package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionConstant  = "devel"
	vcsRevisionSettingKeyConstant  = "vcs.revision"
	vcsModifiedSettingKeyConstant  = "vcs.modified"
	vcsModifiedTrueValueConstant   = "true"
	dirtyRevisionSuffixConstant    = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildInfoProvider exposes the build metadata embedded into the binary.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Dependencies describes the collaborators used during version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
}

// Detector resolves version strings from build metadata.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector, defaulting to the runtime build info
// provider when none is supplied.
func NewDetector(dependencies Dependencies) *Detector {
	buildInfoProvider := dependencies.BuildInfoProvider
	if buildInfoProvider == nil {
		buildInfoProvider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: buildInfoProvider}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version returns the module version for tagged builds, the embedded VCS
// revision otherwise, and "unknown" when no metadata is available.
func (detector *Detector) Version() string {
	if detector == nil || detector.buildInfoProvider == nil {
		return unknownVersionFallbackConstant
	}

	buildInformation, buildInformationAvailable := detector.buildInfoProvider.Read()
	if !buildInformationAvailable || buildInformation == nil {
		return unknownVersionFallbackConstant
	}

	moduleVersion := strings.TrimSpace(buildInformation.Main.Version)
	if len(moduleVersion) > 0 && !strings.EqualFold(moduleVersion, buildInfoDevelVersionConstant) {
		return moduleVersion
	}

	revisionVersion := revisionFromBuildSettings(buildInformation.Settings)
	if len(revisionVersion) > 0 {
		return revisionVersion
	}

	return unknownVersionFallbackConstant
}

func revisionFromBuildSettings(buildSettings []debug.BuildSetting) string {
	revisionValue := ""
	workingTreeModified := false
	for _, buildSetting := range buildSettings {
		switch buildSetting.Key {
		case vcsRevisionSettingKeyConstant:
			revisionValue = strings.TrimSpace(buildSetting.Value)
		case vcsModifiedSettingKeyConstant:
			workingTreeModified = buildSetting.Value == vcsModifiedTrueValueConstant
		}
	}

	if len(revisionValue) == 0 {
		return ""
	}
	if len(revisionValue) > shortRevisionLengthConstant {
		revisionValue = revisionValue[:shortRevisionLengthConstant]
	}
	if workingTreeModified {
		revisionValue += dirtyRevisionSuffixConstant
	}
	return revisionValue
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
