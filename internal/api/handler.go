package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/biz/repo"
	"github.com/hikoo/napcat-mailer/internal/biz/usecase"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

// GatewayStatus reports whether the chat gateway connection is up
type GatewayStatus interface {
	Connected() bool
}

// Server is the JSON backend of the operator dashboard
type Server struct {
	cfg        *conf.Provider
	store      repo.MessageRepo
	cycleUC    *usecase.CycleUsecase
	summarizer repo.SummarizerRepo
	gateway    GatewayStatus

	server *http.Server
	addr   string
}

// NewServer creates a new operator API server
func NewServer(cfg *conf.Provider, store repo.MessageRepo, cycleUC *usecase.CycleUsecase, summarizer repo.SummarizerRepo, gateway GatewayStatus) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		cycleUC:    cycleUC,
		summarizer: summarizer,
		gateway:    gateway,
		addr:       cfg.Snapshot().HTTPAddr,
	}
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	fmt.Printf("[API] Starting HTTP server on %s\n", s.addr)
	return s.server.ListenAndServe()
}

// Handler builds the route mux, exposed separately for tests
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/trigger_manual", s.handleTriggerManual)
	mux.HandleFunc("/api/preview_email", s.handlePreviewEmail)
	mux.HandleFunc("/api/last_notification", s.handleLastNotification)
	mux.HandleFunc("/api/system_status", s.handleSystemStatus)

	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/message_detail", s.handleMessageDetail)
	mux.HandleFunc("/api/update_message_status", s.handleUpdateMessageStatus)
	mux.HandleFunc("/api/batch_update_status", s.handleBatchUpdateStatus)
	mux.HandleFunc("/api/batch_delete", s.handleBatchDelete)
	mux.HandleFunc("/api/clear_all_messages", s.handleClearAllMessages)
	mux.HandleFunc("/api/summaries", s.handleSummaries)

	mux.HandleFunc("/api/get_groups", s.handleGetGroups)
	mux.HandleFunc("/api/update_group_filter", s.handleUpdateGroupFilter)
	mux.HandleFunc("/api/save_config", s.handleSaveConfig)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// ============ Cycle Handlers ============

func (s *Server) handleTriggerManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	outcome := s.cycleUC.Run(r.Context(), "manual_ui")
	s.writeJSON(w, outcome)
}

// handlePreviewEmail renders the pending batch through the same pipeline
// as a real cycle but sends nothing and marks nothing processed
func (s *Server) handlePreviewEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batch, err := s.store.ListUnprocessed(r.Context(), s.cfg.Snapshot().BatchMaxMessages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(batch) == 0 {
		s.writeJSON(w, map[string]interface{}{
			"status":  domain.StatusNoMessages,
			"message": "没有未处理消息",
		})
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), batch)
	if err != nil {
		s.writeJSON(w, map[string]interface{}{
			"status":  domain.StatusAIFailed,
			"message": "AI 接口失败",
		})
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"status":        domain.StatusOK,
		"subject":       usecase.BuildSubject(batch, time.Now()),
		"body":          usecase.RenderEmail(summary, batch),
		"message_count": len(batch),
	})
}

func (s *Server) handleLastNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.cycleUC.LastOutcome())
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	connected := false
	if s.gateway != nil {
		connected = s.gateway.Connected()
	}

	s.writeJSON(w, map[string]interface{}{
		"ws_connected":         connected,
		"unprocessed_messages": counts.Unprocessed,
		"total_messages":       counts.Total,
		"sent_emails":          counts.EmailsSent,
		"next_run_times":       s.cfg.Snapshot().RunTimes,
	})
}

// ============ Message Handlers ============

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := queryPage(r)
	pageSize := s.cfg.Snapshot().PageSize

	messages, total, err := s.store.ListMessages(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"messages":    messages,
		"page":        page,
		"total":       total,
		"total_pages": totalPages(total, pageSize),
	})
}

func (s *Server) handleMessageDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}

	msg, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, msg)
}

func (s *Server) handleUpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID        int64 `json:"id"`
		Processed bool  `json:"processed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if req.ID == 0 {
		s.badRequest(w, "id is required")
		return
	}

	if err := s.store.SetProcessed(r.Context(), req.ID, req.Processed); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"ok": true})
}

func (s *Server) handleBatchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		IDs       []int64 `json:"ids"`
		Processed bool    `json:"processed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		s.badRequest(w, "no ids")
		return
	}

	if err := s.store.BatchSetProcessed(r.Context(), req.IDs, req.Processed); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"ok": true, "count": len(req.IDs)})
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		s.badRequest(w, "no ids")
		return
	}

	if err := s.store.BatchDelete(r.Context(), req.IDs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"ok": true, "count": len(req.IDs)})
}

func (s *Server) handleClearAllMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if !req.Confirm {
		s.badRequest(w, "需要确认")
		return
	}

	if err := s.store.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"ok": true, "message": "所有消息已清空"})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := queryPage(r)
	pageSize := s.cfg.Snapshot().PageSize

	summaries, total, err := s.store.ListSummaries(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"summaries":   summaries,
		"page":        page,
		"total":       total,
		"total_pages": totalPages(total, pageSize),
	})
}

// ============ Filter and Config Handlers ============

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if groups == nil {
		groups = []repo.GroupEntry{}
	}

	cfg := s.cfg.Snapshot()
	s.writeJSON(w, map[string]interface{}{
		"groups":          groups,
		"filter_mode":     cfg.Filter.Mode,
		"blacklist":       cfg.Filter.GroupBlacklist,
		"whitelist":       cfg.Filter.GroupWhitelist,
		"private_enabled": cfg.Filter.PrivateChatEnabled,
	})
}

func (s *Server) handleUpdateGroupFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Mode           string   `json:"mode"`
		Blacklist      []string `json:"blacklist"`
		Whitelist      []string `json:"whitelist"`
		PrivateEnabled bool     `json:"private_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if req.Mode != conf.FilterModeBlacklist && req.Mode != conf.FilterModeWhitelist {
		s.badRequest(w, "mode must be blacklist or whitelist")
		return
	}

	s.cfg.Update(func(c *conf.Config) {
		c.Filter.Mode = req.Mode
		c.Filter.GroupBlacklist = req.Blacklist
		c.Filter.GroupWhitelist = req.Whitelist
		c.Filter.PrivateChatEnabled = req.PrivateEnabled
	})

	fmt.Println("[API] Group filter config updated")
	s.writeJSON(w, map[string]interface{}{"ok": true, "message": "群组过滤配置已更新"})
}

// saveConfigRequest carries the editable general options. Pointers
// distinguish "field absent" from "set to zero value".
type saveConfigRequest struct {
	WSURL            *string `json:"WS_URL"`
	APIBaseURL       *string `json:"API_BASE_URL"`
	AIAPIURL         *string `json:"AI_API_URL"`
	AIAPIKey         *string `json:"AI_API_KEY"`
	AIModel          *string `json:"AI_MODEL"`
	SMTPHost         *string `json:"SMTP_HOST"`
	SMTPPort         *int    `json:"SMTP_PORT"`
	SMTPUser         *string `json:"SMTP_USER"`
	SMTPPassword     *string `json:"SMTP_PASSWORD"`
	EmailFrom        *string `json:"EMAIL_FROM"`
	EmailTo          *string `json:"EMAIL_TO"`
	EmailSenderName  *string `json:"EMAIL_SENDER_NAME"`
	RunTimes         *string `json:"RUN_TIMES"`
	BatchMaxMessages *int    `json:"BATCH_MAX_MESSAGES"`
	PageSize         *int    `json:"PAGE_SIZE"`
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req saveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	// Validate everything before mutating anything
	var runTimes []string
	if req.RunTimes != nil {
		runTimes = conf.SplitList(*req.RunTimes)
		for _, t := range runTimes {
			if _, _, err := conf.ParseRunTime(t); err != nil {
				s.badRequest(w, "invalid run time "+t)
				return
			}
		}
	}
	if req.BatchMaxMessages != nil && *req.BatchMaxMessages <= 0 {
		s.badRequest(w, "BATCH_MAX_MESSAGES must be positive")
		return
	}
	if req.PageSize != nil && *req.PageSize <= 0 {
		s.badRequest(w, "PAGE_SIZE must be positive")
		return
	}
	if req.SMTPPort != nil && (*req.SMTPPort <= 0 || *req.SMTPPort > 65535) {
		s.badRequest(w, "SMTP_PORT out of range")
		return
	}

	s.cfg.Update(func(c *conf.Config) {
		setString(&c.WSURL, req.WSURL)
		setString(&c.APIBaseURL, req.APIBaseURL)
		setString(&c.AI.APIURL, req.AIAPIURL)
		setString(&c.AI.APIKey, req.AIAPIKey)
		setString(&c.AI.Model, req.AIModel)
		setString(&c.SMTP.Host, req.SMTPHost)
		setString(&c.SMTP.User, req.SMTPUser)
		setString(&c.SMTP.Password, req.SMTPPassword)
		setString(&c.Email.From, req.EmailFrom)
		setString(&c.Email.To, req.EmailTo)
		setString(&c.Email.SenderName, req.EmailSenderName)
		if req.SMTPPort != nil {
			c.SMTP.Port = *req.SMTPPort
		}
		if req.RunTimes != nil {
			c.RunTimes = runTimes
		}
		if req.BatchMaxMessages != nil {
			c.BatchMaxMessages = *req.BatchMaxMessages
		}
		if req.PageSize != nil {
			c.PageSize = *req.PageSize
		}
	})

	fmt.Println("[API] Config updated")
	s.writeJSON(w, map[string]interface{}{"ok": true, "message": "配置已保存"})
}

// ============ Helpers ============

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func queryPage(r *http.Request) int {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}

func totalPages(total int64, pageSize int) int64 {
	pages := (total + int64(pageSize) - 1) / int64(pageSize)
	if pages < 1 {
		pages = 1
	}
	return pages
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": msg})
}
