package server

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/usecase"
)

// Admin failures all share one body so the response never distinguishes a
// bad password from a malformed request.
const (
	genericFailureBody  = "Something went wrong"
	webhookSecretHeader = "sb-signing-secret"
)

type Deps struct {
	Chat     *usecase.ChatUsecase
	Settings *usecase.SettingsUsecase
}

type Server struct {
	Deps
	cfg config.Server
}

func New(cfg config.Server, deps Deps) *Server {
	return &Server{
		Deps: deps,
		cfg:  cfg,
	}
}

func (s *Server) Run() error {
	log.Printf("listening on %s", s.cfg.Addr)
	return http.ListenAndServe(s.cfg.Addr, s.Handler())
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /verify_password", s.handleVerifyPassword)
	mux.HandleFunc("POST /update_options", s.handleUpdateOptions)
	mux.HandleFunc("GET /get_all_messages", s.handleGetAllMessages)
	mux.HandleFunc("GET /get_options", s.handleGetOptions)
	mux.HandleFunc("GET /change_password", s.handleChangePassword)
	return mux
}

type webhookPayload struct {
	Status  string `json:"status"`
	Number  string `json:"number"`
	Content string `json:"content"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.WebhookSecret)) != 1 {
		log.Printf("webhook called with invalid secret")
		writeText(w, genericFailureBody)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("failed to decode webhook payload: %v", err)
		writeText(w, genericFailureBody)
		return
	}

	if err := s.Chat.HandleInbound(
		r.Context(), usecase.InboundMessage{
			Status:  payload.Status,
			Number:  payload.Number,
			Content: payload.Content,
		},
	); err != nil {
		log.Printf("failed to handle inbound message: %v", err)
	}
	writeText(w, "JSON received")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "dashboard.html"))
}

type verifyPasswordPayload struct {
	Password string `json:"password"`
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var payload verifyPasswordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeText(w, "false")
		return
	}
	if !s.Settings.VerifyPassword(payload.Password) {
		writeText(w, "false")
		return
	}
	writeText(w, "true")
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, genericFailureBody)
		return
	}
	contextMsgs, err := strconv.Atoi(r.PostFormValue("context_msgs"))
	if err != nil {
		writeText(w, genericFailureBody)
		return
	}
	maxTokens, err := strconv.Atoi(r.PostFormValue("max_tokens"))
	if err != nil {
		writeText(w, genericFailureBody)
		return
	}
	temperature, err := strconv.ParseFloat(r.PostFormValue("temperature"), 32)
	if err != nil {
		writeText(w, genericFailureBody)
		return
	}

	options := model.Options{
		ContextMsgs:       contextMsgs,
		MaxTokens:         maxTokens,
		Temperature:       float32(temperature),
		Prompt:            r.PostFormValue("prompt"),
		ErrorMessage:      r.PostFormValue("error_message"),
		ModerationMessage: r.PostFormValue("moderation_message"),
	}
	if err = s.Settings.UpdateOptions(r.Context(), r.PostFormValue("password"), options); err != nil {
		log.Printf("failed to update options: %v", err)
		writeText(w, genericFailureBody)
		return
	}
	http.Redirect(w, r, "/?success=true", http.StatusFound)
}

type messageJSON struct {
	Role    model.MessageSource `json:"role"`
	Content string              `json:"content"`
}

type conversationJSON struct {
	Content []messageJSON `json:"content"`
	Number  string        `json:"number"`
}

func (s *Server) handleGetAllMessages(w http.ResponseWriter, r *http.Request) {
	if !s.Settings.VerifyPassword(r.URL.Query().Get("password")) {
		writeText(w, genericFailureBody)
		return
	}

	conversations, err := s.Chat.ListConversations(r.Context())
	if err != nil {
		log.Printf("failed to list conversations: %v", err)
		writeText(w, genericFailureBody)
		return
	}

	output := make([]conversationJSON, 0, len(conversations))
	for _, convo := range conversations {
		messages := make([]messageJSON, 0, len(convo.Messages))
		for _, message := range convo.Messages {
			messages = append(
				messages, messageJSON{
					Role:    message.Source,
					Content: message.Body,
				},
			)
		}
		output = append(
			output, conversationJSON{
				Content: messages,
				Number:  convo.Number,
			},
		)
	}
	writeJSON(w, output)
}

type optionsJSON struct {
	ContextMsgs       int     `json:"context_msgs"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float32 `json:"temperature"`
	Prompt            string  `json:"prompt"`
	ErrorMessage      string  `json:"error_message"`
	ModerationMessage string  `json:"moderation_message"`
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	if !s.Settings.VerifyPassword(r.URL.Query().Get("password")) {
		writeText(w, genericFailureBody)
		return
	}

	settings := s.Settings.Current()
	writeJSON(
		w, optionsJSON{
			ContextMsgs:       settings.ContextMsgs,
			MaxTokens:         settings.MaxTokens,
			Temperature:       settings.Temperature,
			Prompt:            settings.Prompt,
			ErrorMessage:      settings.ErrorMessage,
			ModerationMessage: settings.ModerationMessage,
		},
	)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	password := r.URL.Query().Get("password")
	newPassword := r.URL.Query().Get("newPass")
	if password == "" || newPassword == "" {
		writeText(w, genericFailureBody)
		return
	}
	if err := s.Settings.ChangePassword(r.Context(), password, newPassword); err != nil {
		log.Printf("failed to change password: %v", err)
		writeText(w, genericFailureBody)
		return
	}
	writeText(w, "Success")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
