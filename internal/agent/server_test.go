package agent_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/rigup/internal/agent"
	"github.com/tyemirov/rigup/internal/report"
)

const (
	testHealthPathConstant        = "/healthz"
	testReportPathConstant        = "/report"
	testLogLineConstant           = "[docker stdout] pulling image\n"
	testTraversalTaskPathConstant = "/logs/..%2F..%2Fetc/stdout"
	testUnknownStreamPathConstant = "/logs/docker/trace"
	testMissingLogPathConstant    = "/logs/docker/stderr"
	testDockerLogPathConstant     = "/logs/docker/stdout"
)

func newTestServer(testInstance *testing.T, logDirectory string) *agent.Server {
	server, creationError := agent.NewServer(zap.NewNop(), agent.ServerOptions{LogDirectory: logDirectory})
	require.NoError(testInstance, creationError)
	return server
}

func TestNewServerValidation(testInstance *testing.T) {
	_, missingLoggerError := agent.NewServer(nil, agent.ServerOptions{LogDirectory: testInstance.TempDir()})
	require.ErrorIs(testInstance, missingLoggerError, agent.ErrLoggerNotConfigured)

	_, missingDirectoryError := agent.NewServer(zap.NewNop(), agent.ServerOptions{})
	require.ErrorIs(testInstance, missingDirectoryError, agent.ErrLogDirectoryNotProvided)
}

func TestHealthEndpoint(testInstance *testing.T) {
	server := newTestServer(testInstance, testInstance.TempDir())

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, testHealthPathConstant, nil))

	require.Equal(testInstance, http.StatusOK, recorder.Code)

	healthResponse := map[string]string{}
	require.NoError(testInstance, json.Unmarshal(recorder.Body.Bytes(), &healthResponse))
	require.Equal(testInstance, "ok", healthResponse["status"])
}

func TestReportEndpoint(testInstance *testing.T) {
	logDirectory := testInstance.TempDir()
	server := newTestServer(testInstance, logDirectory)

	missingRecorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(missingRecorder, httptest.NewRequest(http.MethodGet, testReportPathConstant, nil))
	require.Equal(testInstance, http.StatusNotFound, missingRecorder.Code)

	savedReport := report.RunReport{
		Succeeded:    false,
		FailureCount: 1,
		Tasks:        []report.TaskReport{{Name: "docker", State: "failed"}},
	}
	require.NoError(testInstance, report.Save(filepath.Join(logDirectory, report.FileName), savedReport))

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, testReportPathConstant, nil))
	require.Equal(testInstance, http.StatusOK, recorder.Code)

	loadedReport := report.RunReport{}
	require.NoError(testInstance, json.Unmarshal(recorder.Body.Bytes(), &loadedReport))
	require.Equal(testInstance, 1, loadedReport.FailureCount)
	require.Len(testInstance, loadedReport.Tasks, 1)
	require.Equal(testInstance, "docker", loadedReport.Tasks[0].Name)
}

func TestTaskLogEndpoint(testInstance *testing.T) {
	logDirectory := testInstance.TempDir()
	logFilePath := filepath.Join(logDirectory, "docker.stdout.log")
	require.NoError(testInstance, os.WriteFile(logFilePath, []byte(testLogLineConstant), 0o644))

	server := newTestServer(testInstance, logDirectory)

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, testDockerLogPathConstant, nil))
	require.Equal(testInstance, http.StatusOK, recorder.Code)
	require.Equal(testInstance, testLogLineConstant, recorder.Body.String())

	missingRecorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(missingRecorder, httptest.NewRequest(http.MethodGet, testMissingLogPathConstant, nil))
	require.Equal(testInstance, http.StatusNotFound, missingRecorder.Code)

	unknownStreamRecorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(unknownStreamRecorder, httptest.NewRequest(http.MethodGet, testUnknownStreamPathConstant, nil))
	require.Equal(testInstance, http.StatusBadRequest, unknownStreamRecorder.Code)

	traversalRecorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(traversalRecorder, httptest.NewRequest(http.MethodGet, testTraversalTaskPathConstant, nil))
	require.Equal(testInstance, http.StatusBadRequest, traversalRecorder.Code)
}
