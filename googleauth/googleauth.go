// Package googleauth resolves the two credential scopes the tool needs:
// a user OAuth token for reading Gmail and a service account for writing
// to Drive.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/ancepiemonte/rassegna/config"
)

// GmailHTTPClient returns an HTTP client authorized for read-only Gmail
// access. The token comes from GOOGLE_TOKEN_JSON when set, otherwise from
// the persisted token file; an expired token is refreshed and, when it was
// loaded from disk, written back so the next run starts valid.
func GmailHTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tok, fromFile, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}

	if !tok.Valid() {
		refreshed, err := oauthCfg.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, fmt.Errorf("refresh gmail token: %w (re-run 'rassegna authorize' to obtain a new one)", err)
		}
		tok = refreshed
		if fromFile {
			if err := saveToken(cfg.TokenFile, tok); err != nil {
				return nil, err
			}
		}
	}

	return oauthCfg.Client(ctx, tok), nil
}

// DriveHTTPClient returns an HTTP client for the Drive service account,
// scoped to files the account itself creates.
func DriveHTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	raw := []byte(cfg.ServiceAccountJSON)
	if len(raw) == 0 {
		var err error
		raw, err = os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return jwtCfg.Client(ctx), nil
}

// Authorize runs the one-time interactive consent flow and persists the
// resulting token. It is never invoked during automated syncs.
func Authorize(ctx context.Context, cfg *config.Config) error {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return err
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := oauthCfg.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(cfg.TokenFile, tok); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", cfg.TokenFile)
	return nil
}

func oauthConfig(cfg *config.Config) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return oauthCfg, nil
}

func loadToken(cfg *config.Config) (tok *oauth2.Token, fromFile bool, err error) {
	if cfg.TokenJSON != "" {
		tok = &oauth2.Token{}
		if err := json.Unmarshal([]byte(cfg.TokenJSON), tok); err != nil {
			return nil, false, fmt.Errorf("parse GOOGLE_TOKEN_JSON: %w", err)
		}
		return tok, false, nil
	}

	f, err := os.Open(cfg.TokenFile)
	if err != nil {
		return nil, false, fmt.Errorf("no gmail token at %s: %w (run 'rassegna authorize' once)", cfg.TokenFile, err)
	}
	defer f.Close()

	tok = &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, false, fmt.Errorf("decode token file %s: %w", cfg.TokenFile, err)
	}
	return tok, true, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return nil
}
