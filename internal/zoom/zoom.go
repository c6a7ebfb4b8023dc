package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/gatherly/meetsync/pkg/models"
)

const (
	defaultBaseURL  = "https://api.zoom.us/v2"
	defaultTokenURL = "https://zoom.us/oauth/token"

	// Zoom meeting type 2: scheduled meeting with a fixed start time.
	typeScheduled = 2

	jwtTTL = 5 * time.Minute
)

type Config struct {
	BaseURL string

	// Server-to-server OAuth app credentials. Used when AccountID is set.
	AccountID    string
	ClientID     string
	ClientSecret string
	TokenURL     string

	// Classic JWT app credentials, used when no AccountID is configured.
	APIKey    string
	APISecret string
}

type Client struct {
	log     *logrus.Entry
	http    *http.Client
	baseURL string
	cfg     Config
}

func New(ctx context.Context, log *logrus.Logger, cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.AccountID != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = defaultTokenURL
		}
		oauth := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			EndpointParams: url.Values{
				"grant_type": {"account_credentials"},
				"account_id": {cfg.AccountID},
			},
		}
		httpClient = oauth.Client(ctx)
		httpClient.Timeout = 30 * time.Second
	}
	return &Client{
		log:     log.WithField("component", "zoom"),
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
	}
}

func (c *Client) ID() string {
	return "zoom"
}

type meetingSettings struct {
	JoinBeforeHost bool `json:"join_before_host"`
	WaitingRoom    bool `json:"waiting_room"`
	ApprovalType   int  `json:"approval_type"`
}

type meetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time,omitempty"`
	Duration  int             `json:"duration,omitempty"`
	Timezone  string          `json:"timezone,omitempty"`
	Password  string          `json:"password,omitempty"`
	Settings  meetingSettings `json:"settings"`
}

type meetingResponse struct {
	ID        int64  `json:"id"`
	JoinURL   string `json:"join_url"`
	Password  string `json:"password"`
	HostEmail string `json:"host_email"`
}

func (c *Client) CreateMeeting(ctx context.Context, req models.ProviderMeetingRequest) (models.ProviderMeeting, error) {
	body := requestBody(req)
	if req.RequiresPassword {
		body.Password = generatePassword()
	}
	var resp meetingResponse
	path := fmt.Sprintf("/users/%s/meetings", url.PathEscape(req.HostEmail))
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return models.ProviderMeeting{}, err
	}
	return providerMeeting(resp, req.HostEmail), nil
}

func (c *Client) UpdateMeeting(ctx context.Context, providerMeetingID string, req models.ProviderMeetingRequest) (models.ProviderMeeting, error) {
	path := "/meetings/" + url.PathEscape(providerMeetingID)
	if err := c.do(ctx, http.MethodPatch, path, requestBody(req), nil); err != nil {
		return models.ProviderMeeting{}, err
	}
	// PATCH answers 204; fetch the meeting back so the recorder gets the
	// current join URL and password.
	var resp meetingResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.ProviderMeeting{}, err
	}
	return providerMeeting(resp, req.HostEmail), nil
}

// DeleteMeeting removes the provider-side meeting. A meeting the provider
// no longer knows counts as deleted.
func (c *Client) DeleteMeeting(ctx context.Context, providerMeetingID string) error {
	err := c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(providerMeetingID), nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// EndMeeting forces a running meeting to finish. A meeting the provider no
// longer knows needs no ending.
func (c *Client) EndMeeting(ctx context.Context, providerMeetingID string) error {
	body := map[string]string{"action": "end"}
	err := c.do(ctx, http.MethodPut, "/meetings/"+url.PathEscape(providerMeetingID)+"/status", body, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// StatusError is a non-2xx answer from the provider API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zoom responded %d: %s", e.Code, e.Body)
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("err encoding zoom request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("err building zoom request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AccountID == "" {
		token, err := c.signJWT()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("err calling zoom %s %s: %w", method, path, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.Warnf("err closing zoom response body: %v", err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("err decoding zoom response: %w", err)
	}
	return nil
}

func (c *Client) signJWT() (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    c.cfg.APIKey,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.APISecret))
	if err != nil {
		return "", fmt.Errorf("err signing zoom jwt: %w", err)
	}
	return token, nil
}

func requestBody(req models.ProviderMeetingRequest) meetingRequest {
	return meetingRequest{
		Topic:     req.Topic,
		Type:      typeScheduled,
		StartTime: req.StartsAt.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  (req.DurationSecs + 59) / 60,
		Timezone:  req.Timezone,
		Settings: meetingSettings{
			JoinBeforeHost: true,
		},
	}
}

func providerMeeting(resp meetingResponse, host string) models.ProviderMeeting {
	if resp.HostEmail != "" {
		host = resp.HostEmail
	}
	return models.ProviderMeeting{
		ProviderID:        "zoom",
		ProviderMeetingID: fmt.Sprintf("%d", resp.ID),
		JoinURL:           resp.JoinURL,
		Password:          resp.Password,
		HostEmail:         host,
	}
}

func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
