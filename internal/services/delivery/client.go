package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SendPath 是投递服务的接口路径。
const SendPath = "/api/send-email"

// ErrMissingField 表示收件人、主题或正文为空，请求不会发出。
var ErrMissingField = errors.New("Missing required fields: to, subject, html")

// Message 是一封报告邮件。
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Validate 检查必填字段。
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" || strings.TrimSpace(m.HTML) == "" {
		return ErrMissingField
	}
	return nil
}

// Sender 投递报告邮件。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Error 是投递服务返回的失败，Message 取自服务端的 error 字段。
type Error struct {
	Status  int
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" && e.Details != e.Message {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// HTTPClient 把邮件以 JSON 提交给投递服务（见 SMTPRelay）。
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client

	logger *zap.Logger
}

func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), logger: logger}
}

// Send 实现 Sender。非 2xx 或 success=false 都返回 *Error。
func (c *HTTPClient) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return fmt.Errorf("delivery url is required")
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+SendPath, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("send email failed", zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var out sendResponse
	decodeErr := json.Unmarshal(b, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)}
		if decodeErr == nil && out.Error != "" {
			e.Message = out.Error
			e.Details = out.Details
		}
		c.logger.Warn("send email rejected", zap.Int("status", resp.StatusCode), zap.String("error", e.Error()))
		return e
	}
	if decodeErr != nil {
		return &Error{Status: resp.StatusCode, Message: "Failed to send email", Details: decodeErr.Error()}
	}
	if !out.Success {
		e := &Error{Status: resp.StatusCode, Message: "Failed to send email"}
		if out.Error != "" {
			e.Message = out.Error
			e.Details = out.Details
		}
		return e
	}
	c.logger.Info("email sent", zap.String("to", msg.To))
	return nil
}
