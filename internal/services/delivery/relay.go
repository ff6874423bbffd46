package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"cctv-checklist/internal/app"

	"go.uber.org/zap"
)

// MailFunc 与 smtp.SendMail 签名一致，测试时可替换。
type MailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPRelay 是投递服务的服务端：接收 JSON 请求并通过 SMTP 发出邮件。
type SMTPRelay struct {
	cfg    app.SMTPConfig
	send   MailFunc
	logger *zap.Logger
	now    func() time.Time
}

func NewSMTPRelay(cfg app.SMTPConfig, logger *zap.Logger) *SMTPRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPRelay{cfg: cfg, send: smtp.SendMail, logger: logger, now: time.Now}
}

// WithMailFunc 替换底层发送函数。
func (s *SMTPRelay) WithMailFunc(fn MailFunc) *SMTPRelay {
	s.send = fn
	return s
}

func (s *SMTPRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRelayJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(&msg); err != nil {
		writeRelayJSON(w, http.StatusBadRequest, map[string]any{"error": ErrMissingField.Error()})
		return
	}
	if err := msg.Validate(); err != nil {
		writeRelayJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err := s.Deliver(msg); err != nil {
		s.logger.Error("smtp delivery failed", zap.String("to", msg.To), zap.Error(err))
		writeRelayJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to send email",
			"details": err.Error(),
		})
		return
	}
	s.logger.Info("smtp delivery ok", zap.String("to", msg.To))
	writeRelayJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Email sent successfully"})
}

// Send 实现 Sender，供进程内直接投递使用。失败返回 *Error。
func (s *SMTPRelay) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Deliver(msg); err != nil {
		s.logger.Error("smtp delivery failed", zap.String("to", msg.To), zap.Error(err))
		return &Error{Message: "Failed to send email", Details: err.Error()}
	}
	return nil
}

// Deliver 直接通过 SMTP 发送一封邮件。
func (s *SMTPRelay) Deliver(msg Message) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	to := splitRecipients(msg.To)
	if len(to) == 0 {
		return ErrMissingField
	}
	return s.send(addr, auth, from, to, buildMIME(from, to, msg.Subject, msg.HTML, s.now()))
}

func splitRecipients(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildMIME 组装 UTF-8 HTML 邮件，正文 base64 编码并按 76 列折行。
func buildMIME(from string, to []string, subject, body string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(body))
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func writeRelayJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
