package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// ContainerSuite provides a temp directory, logger and context to suites
// that read and write container files.
type ContainerSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *ContainerSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "zfits-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *ContainerSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *ContainerSuite) Context() context.Context {
	return s.ctx
}

// Logger returns a logger bound to the running test.
func (s *ContainerSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// Path returns a path for name inside the suite's temp directory.
func (s *ContainerSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}
