package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/validate"
)

const (
	maxWebhookBytes = 1 << 20
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
	formPayloadKey  = "payload"
)

// WebhookDependencies defines the interface for webhook processing.
type WebhookDependencies interface {
	IssueLabeled(ctx context.Context, ev service.IssueEvent) (service.Outcome, error)
	Published(ctx context.Context, ev service.PublishEvent) (service.Outcome, error)
}

// WebhookHandler handles inbound GitHub and blog notifications.
type WebhookHandler struct {
	deps   WebhookDependencies
	secret []byte
	logger logger.Logger
}

// NewWebhookHandler creates a new webhook handler. An empty secret disables
// signature verification.
func NewWebhookHandler(deps WebhookDependencies, secret string, l logger.Logger) *WebhookHandler {
	h := &WebhookHandler{deps: deps, logger: l}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// issueRequest mirrors the fields of GitHub's issues event that matter here.
type issueRequest struct {
	Action string `json:"action"`
	Label  *struct {
		Name string `json:"name"`
	} `json:"label"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
	Issue *struct {
		Number int `json:"number"`
	} `json:"issue"`
}

func (r issueRequest) event() service.IssueEvent {
	ev := service.IssueEvent{Action: r.Action, Login: r.Sender.Login}
	if r.Label != nil {
		ev.Label = r.Label.Name
	}
	if r.Issue != nil {
		ev.IssueNumber = r.Issue.Number
	}
	return ev
}

// publishRequest is the blog's post-published notification.
type publishRequest struct {
	PostAuthor flexString `json:"post_author"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("want string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// HandleIssue handles POST /github/issue requests.
func (h *WebhookHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.verify(r.Header.Get(signatureHeader), body); err != nil {
		h.logger.Warn(r.Context(), "rejected webhook signature", logger.String("delivery", r.Header.Get("X-GitHub-Delivery")))
		writeFailure(w, err)
		return
	}

	var req issueRequest
	if err := decodeWebhook(r, body, &req, nil); err != nil {
		writeFailure(w, err)
		return
	}

	out, err := h.deps.IssueLabeled(r.Context(), req.event())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeText(w, http.StatusOK, out.Token())
}

// HandlePublish handles POST /webhook requests.
func (h *WebhookHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req publishRequest
	err = decodeWebhook(r, body, &req, func(form url.Values) {
		req.PostAuthor = flexString(form.Get("post_author"))
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	out, err := h.deps.Published(r.Context(), service.PublishEvent{AuthorID: string(req.PostAuthor)})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeText(w, http.StatusOK, out.Token())
}

// verify checks the GitHub HMAC signature of body when a secret is set.
func (h *WebhookHandler) verify(header string, body []byte) error {
	if h.secret == nil {
		return nil
	}
	got, ok := strings.CutPrefix(strings.TrimSpace(header), signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrBadSignature, signatureHeader)
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrBadRequest, err)
	}
	return body, nil
}

// decodeWebhook fills dst from a JSON body or from a form body. Form bodies
// may carry the JSON document in a "payload" field; otherwise fromForm maps
// the fields directly. The result is validated.
func decodeWebhook(r *http.Request, body []byte, dst any, fromForm func(url.Values)) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return fmt.Errorf("%w: form: %v", ErrBadRequest, err)
		}
		switch {
		case form.Has(formPayloadKey):
			body = []byte(form.Get(formPayloadKey))
		case fromForm != nil:
			fromForm(form)
			return validate.Struct(dst)
		default:
			return fmt.Errorf("%w: form body without %s field", ErrBadRequest, formPayloadKey)
		}
	}

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return validate.Struct(dst)
}
