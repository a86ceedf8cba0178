// Package agent implements the long-running status daemon left behind after a
// successful provisioning run. It serves the persisted run report and the
// per-task logs over HTTP.
package agent

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/rigup/internal/report"
)

const (
	// DefaultListenAddress is the loopback address the agent binds by default.
	DefaultListenAddress = "127.0.0.1:7600"

	healthEndpointPathConstant        = "/healthz"
	reportEndpointPathConstant        = "/report"
	logsEndpointPathConstant          = "/logs/:task/:stream"
	taskParameterNameConstant         = "task"
	streamParameterNameConstant       = "stream"
	standardOutputStreamNameConstant  = "stdout"
	standardErrorStreamNameConstant   = "stderr"
	healthStatusFieldNameConstant     = "status"
	healthStatusValueConstant         = "ok"
	errorFieldNameConstant            = "error"
	reportNotFoundMessageConstant     = "no run report found"
	unknownStreamMessageConstant      = "stream must be stdout or stderr"
	invalidTaskNameMessageConstant    = "invalid task name"
	logNotFoundMessageConstant        = "no log captured for task"
	loggerRequiredMessageConstant     = "agent logger not configured"
	logDirectoryRequiredMessage       = "agent log directory not provided"
	serverShutdownGracePeriodConstant = 5 * time.Second
	serverStartedMessageConstant      = "status agent listening"
	listenAddressFieldNameConstant    = "listen_address"
	plainTextContentTypeConstant      = "text/plain; charset=utf-8"
)

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerRequiredMessageConstant)
	// ErrLogDirectoryNotProvided indicates the log directory was missing.
	ErrLogDirectoryNotProvided = errors.New(logDirectoryRequiredMessage)
)

// ServerOptions configures the status agent.
type ServerOptions struct {
	ListenAddress string
	LogDirectory  string
}

// Server exposes the run report and task logs over HTTP.
type Server struct {
	logger        *zap.Logger
	listenAddress string
	logDirectory  string
	engine        *gin.Engine
}

// NewServer validates dependencies and builds the agent server.
func NewServer(logger *zap.Logger, options ServerOptions) (*Server, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if len(options.LogDirectory) == 0 {
		return nil, ErrLogDirectoryNotProvided
	}

	listenAddress := options.ListenAddress
	if len(listenAddress) == 0 {
		listenAddress = DefaultListenAddress
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{
		logger:        logger,
		listenAddress: listenAddress,
		logDirectory:  options.LogDirectory,
		engine:        engine,
	}

	engine.GET(healthEndpointPathConstant, server.handleHealth)
	engine.GET(reportEndpointPathConstant, server.handleReport)
	engine.GET(logsEndpointPathConstant, server.handleTaskLog)

	return server, nil
}

// Handler returns the HTTP handler serving the agent routes.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (server *Server) Run(executionContext context.Context) error {
	httpServer := &http.Server{Addr: server.listenAddress, Handler: server.engine}

	serveErrors := make(chan error, 1)
	go func() {
		server.logger.Info(serverStartedMessageConstant, zap.String(listenAddressFieldNameConstant, server.listenAddress))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case <-executionContext.Done():
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), serverShutdownGracePeriodConstant)
		defer cancelShutdown()
		return httpServer.Shutdown(shutdownContext)
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return serveError
	}
}

func (server *Server) handleHealth(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, gin.H{healthStatusFieldNameConstant: healthStatusValueConstant})
}

func (server *Server) handleReport(requestContext *gin.Context) {
	reportPath := filepath.Join(server.logDirectory, report.FileName)
	loadedReport, loadError := report.Load(reportPath)
	if loadError != nil {
		if os.IsNotExist(loadError) {
			requestContext.JSON(http.StatusNotFound, gin.H{errorFieldNameConstant: reportNotFoundMessageConstant})
			return
		}
		requestContext.JSON(http.StatusInternalServerError, gin.H{errorFieldNameConstant: loadError.Error()})
		return
	}

	requestContext.JSON(http.StatusOK, loadedReport)
}

func (server *Server) handleTaskLog(requestContext *gin.Context) {
	taskName := requestContext.Param(taskParameterNameConstant)
	streamName := requestContext.Param(streamParameterNameConstant)

	if streamName != standardOutputStreamNameConstant && streamName != standardErrorStreamNameConstant {
		requestContext.JSON(http.StatusBadRequest, gin.H{errorFieldNameConstant: unknownStreamMessageConstant})
		return
	}
	if strings.ContainsAny(taskName, `/\`) || taskName == "." || taskName == ".." {
		requestContext.JSON(http.StatusBadRequest, gin.H{errorFieldNameConstant: invalidTaskNameMessageConstant})
		return
	}

	logFilePath := filepath.Join(server.logDirectory, taskName+"."+streamName+".log")
	logContent, readError := os.ReadFile(logFilePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			requestContext.JSON(http.StatusNotFound, gin.H{errorFieldNameConstant: logNotFoundMessageConstant})
			return
		}
		requestContext.JSON(http.StatusInternalServerError, gin.H{errorFieldNameConstant: readError.Error()})
		return
	}

	requestContext.Data(http.StatusOK, plainTextContentTypeConstant, logContent)
}
