package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/yt-audit/backend/pkg/config"
	"github.com/yt-audit/backend/pkg/logger"
)

// Scopes cover Data API reads, Analytics API reads and caption downloads
// (captions.download requires force-ssl).
var scopes = []string{
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
	"https://www.googleapis.com/auth/youtube.force-ssl",
}

// oauth2Client builds an HTTP client whose requests carry (and transparently
// refresh) the stored token.
func oauth2Client(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}

func oauthConfig(cfg *config.YouTubeConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// tokenSaver is an oauth2.TokenSource that persists refreshed tokens so a
// refresh survives restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	mu        sync.Mutex
}

func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		logger.Info("OAuth token refreshed, saving")
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			logger.Warn("Failed to save refreshed token", zap.Error(err))
		}
	}
	return newToken, nil
}

// getToken loads a token from disk, preferring one with a refresh token even
// when expired, and falls back to the device authorization flow.
func getToken(config *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		if tok.RefreshToken != "" || tok.Valid() {
			return tok, nil
		}
	}

	tok, err = getTokenWithDeviceFlow(config)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}
	if err := saveToken(tokenFile, tok); err != nil {
		logger.Warn("Failed to save token", zap.Error(err))
	}
	return tok, nil
}

func getTokenWithDeviceFlow(config *oauth2.Config) (*oauth2.Token, error) {
	ctx := context.Background()

	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("unable to start device authorization: %w", err)
	}

	fmt.Printf("\nAuthorize this app: visit %s and enter code %s\n", resp.VerificationURI, resp.UserCode)
	fmt.Printf("Waiting for authorization... (Ctrl+C to cancel)\n")

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization did not complete: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
