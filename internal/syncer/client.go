package syncer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatescan/internal/config"
	"gatescan/internal/logger"
	"gatescan/internal/models"
)

// Client talks to the authoritative server with the device's API token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Log     *logger.Logger
}

func NewClient(cfg config.SyncConfig, log *logger.Logger) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("sync: SYNC_API_TOKEN is not set")
	}
	if err := checkTokenExpiry(cfg.APIToken); err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   cfg.APIToken,
		HTTP:    &http.Client{Timeout: cfg.UploadTimeout},
		Log:     log,
	}, nil
}

// checkTokenExpiry pre-checks JWT device tokens so an expired token shows up
// as a configuration error instead of an endless 401 loop. Opaque tokens
// pass through; only the server can judge them.
func checkTokenExpiry(token string) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("sync: device token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}

type redeemBody struct {
	Secret       string           `json:"secret"`
	Nonce        string           `json:"nonce"`
	Direction    string           `json:"type"`
	Datetime     time.Time        `json:"datetime"`
	Force        bool             `json:"force"`
	IgnoreUnpaid bool             `json:"ignore_status"`
	Answers      map[int64]string `json:"answers,omitempty"`
}

type redeemReply struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// Upload implements Uploader over the server's redeem endpoint.
func (c *Client) Upload(qc *models.QueuedCheckIn) UploadResult {
	body, err := json.Marshal(redeemBody{
		Secret:       qc.Secret,
		Nonce:        qc.Nonce,
		Direction:    qc.Direction,
		Datetime:     qc.Datetime,
		Force:        qc.Force,
		IgnoreUnpaid: qc.IgnoreUnpaid,
		Answers:      qc.Answers,
	})
	if err != nil {
		return UploadResult{Outcome: UploadRejected, Reason: "encode", Detail: err.Error()}
	}

	url := fmt.Sprintf("%s/events/%s/checkinlists/%d/redeem", c.BaseURL, qc.EventSlug, qc.ListID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return UploadResult{Outcome: UploadTransient, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Device "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return UploadResult{Outcome: UploadTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return UploadResult{Outcome: UploadConfirmed}

	case resp.StatusCode == http.StatusTooManyRequests:
		return UploadResult{Outcome: UploadRetryAfter, RetryAfter: retryAfter(resp)}

	case resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusRequestTimeout:
		// Auth trouble is a device problem, not a verdict on the check-in;
		// the queued request must survive until the token is fixed.
		return UploadResult{Outcome: UploadTransient, Err: fmt.Errorf("server returned %s", resp.Status)}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var reply redeemReply
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &reply); err != nil || reply.Reason == "" {
			reply.Reason = resp.Status
		}
		return UploadResult{Outcome: UploadRejected, Reason: reply.Reason, Detail: reply.Detail}

	default:
		return UploadResult{Outcome: UploadTransient, Err: fmt.Errorf("server returned %s", resp.Status)}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
