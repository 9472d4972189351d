package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/skillbridge/internal/config"
)

// PlunkMailer sends through the Plunk HTTP API.
type PlunkMailer struct {
	cfg     config.PlunkConfig
	replyTo string
	client  *http.Client
}

func NewPlunkMailer(cfg config.PlunkConfig, replyTo string, client *http.Client) *PlunkMailer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PlunkMailer{cfg: cfg, replyTo: replyTo, client: client}
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

func (p *PlunkMailer) Send(ctx context.Context, env EmailEnvelope) error {
	b, err := json.Marshal(plunkSendBody{
		To:      env.To,
		Subject: env.Subject,
		Body:    env.Body,
		From:    p.cfg.From,
		Reply:   p.replyTo,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil && len(body) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, body)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
