package tests

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	providerTimeout = 120 * time.Second

	samplePitch = "Um, so, we help, like, small clinics cut no-shows in half. " +
		"Our app texts patients the day before and, uh, lets them rebook in one tap. " +
		"We think clinics could maybe save ten hours a week? We're raising a seed round!"
)

// ExternalDependenciesSuite loads provider credentials from SETTINGS_FILE or
// $HOME/.env before any integration suite runs.
type ExternalDependenciesSuite struct {
	suite.Suite
	settingsFile string
}

func (s *ExternalDependenciesSuite) SetupSuite() {
	settingsFromEnv := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	settingsFile := settingsFromEnv
	if settingsFile == "" {
		homeDir, err := os.UserHomeDir()
		require.NoError(s.T(), err)
		settingsFile = filepath.Join(homeDir, ".env")
	}
	s.settingsFile = settingsFile

	if _, err := os.Stat(settingsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) && settingsFromEnv == "" {
			return
		}
		require.NoError(s.T(), err)
		return
	}

	require.NoError(s.T(), godotenv.Overload(settingsFile))
}

// envOrSkip returns the first non-blank variable, skipping the suite when none is set.
func (s *ExternalDependenciesSuite) envOrSkip(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	s.T().Skipf("%s is not set; skipping external dependency integration test", strings.Join(keys, " or "))
	return ""
}

func (s *ExternalDependenciesSuite) providerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), providerTimeout)
}
