package version_test

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rigup/internal/version"
)

const (
	testTaggedModuleVersionConstant = "v1.4.0"
	testLongRevisionConstant        = "0123456789abcdef0123456789abcdef01234567"
	testShortRevisionConstant       = "0123456789ab"
)

type stubBuildInfoProvider struct {
	buildInformation *debug.BuildInfo
	available        bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return provider.buildInformation, provider.available
}

func TestDetectorVersion(testInstance *testing.T) {
	testCases := []struct {
		name             string
		buildInformation *debug.BuildInfo
		available        bool
		expectedVersion  string
	}{
		{
			name:             "tagged module version",
			buildInformation: &debug.BuildInfo{Main: debug.Module{Version: testTaggedModuleVersionConstant}},
			available:        true,
			expectedVersion:  testTaggedModuleVersionConstant,
		},
		{
			name: "devel build falls back to revision",
			buildInformation: &debug.BuildInfo{
				Main: debug.Module{Version: "devel"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: testLongRevisionConstant},
				},
			},
			available:       true,
			expectedVersion: testShortRevisionConstant,
		},
		{
			name: "modified working tree marks revision dirty",
			buildInformation: &debug.BuildInfo{
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: testLongRevisionConstant},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			available:       true,
			expectedVersion: testShortRevisionConstant + "-dirty",
		},
		{
			name:             "no metadata reports unknown",
			buildInformation: &debug.BuildInfo{},
			available:        true,
			expectedVersion:  "unknown",
		},
		{
			name:            "build info unavailable reports unknown",
			available:       false,
			expectedVersion: "unknown",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			detector := version.NewDetector(version.Dependencies{
				BuildInfoProvider: stubBuildInfoProvider{
					buildInformation: testCase.buildInformation,
					available:        testCase.available,
				},
			})
			require.Equal(subtestInstance, testCase.expectedVersion, detector.Version())
		})
	}
}

func TestDetectDefaultsToRuntimeProvider(testInstance *testing.T) {
	require.NotEmpty(testInstance, version.Detect(version.Dependencies{}))
}
