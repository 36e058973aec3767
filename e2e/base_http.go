package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite drives a running relay instance over its HTTP surface.
// Scenarios are skipped unless RELAY_ADDR points at a live instance.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseHTTPSuite) RequireRelay(t *testing.T) {
	if s.Config.RelayAddr == "" {
		t.Skip("RELAY_ADDR not set, skipping end-to-end scenario")
	}
}

// Step prints a colorized header for one scenario step in logs
func (s *BaseHTTPSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Post sends one JSON payload and decodes the JSON answer into out.
func (s *BaseHTTPSuite) Post(t *testing.T, path string, payload any, out any) *http.Response {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	request, err := http.NewRequest(http.MethodPost, s.Config.RelayAddr+path, bytes.NewReader(body))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if s.Config.RelayToken != "" {
		request.Header.Set("X-Relay-Token", s.Config.RelayToken)
	}

	return s.do(t, request, out)
}

// Get fetches one path and decodes the JSON answer into out.
func (s *BaseHTTPSuite) Get(t *testing.T, path string, out any) *http.Response {
	request, err := http.NewRequest(http.MethodGet, s.Config.RelayAddr+path, nil)
	s.Require().NoError(err)
	return s.do(t, request, out)
}

func (s *BaseHTTPSuite) do(t *testing.T, request *http.Request, out any) *http.Response {
	start := time.Now()
	response, err := s.client.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v",
		request.Method, request.URL.Path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	t.Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return response
}
