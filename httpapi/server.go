package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"orbyte.systems/orbyte/core"
	"orbyte.systems/orbyte/internal/activity"
	"orbyte.systems/orbyte/internal/logx"
	"orbyte.systems/orbyte/internal/panelconfig"
	"orbyte.systems/orbyte/internal/presence"
	"orbyte.systems/orbyte/internal/tokenstore"
	"orbyte.systems/orbyte/schema"
)

// Server serves the panel HTTP API.
type Server struct {
	cfg      Config
	service  core.Service
	panelCfg *panelconfig.Manager
	tokens   *tokenstore.Store
	activity *activity.Log
	hub      *Hub
	basePath string
	presMu   sync.Mutex
	presence *presence.Activity
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, panelCfg *panelconfig.Manager, tokens *tokenstore.Store, activityLog *activity.Log, hub *Hub) *Server {
	return &Server{
		cfg:      cfg,
		service:  service,
		panelCfg: panelCfg,
		tokens:   tokens,
		activity: activityLog,
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/scripts", s.requireToken(s.handleScripts))
	mux.HandleFunc("/api/scripts/get", s.requireToken(s.handleScriptGet))
	mux.HandleFunc("/api/scripts/open", s.requireToken(s.handleScriptOpen))
	mux.HandleFunc("/api/scripts/rename", s.requireToken(s.handleScriptRename))
	mux.HandleFunc("/api/scripts/delete", s.requireToken(s.handleScriptDelete))
	mux.HandleFunc("/api/scripts/reveal", s.requireToken(s.handleScriptReveal))
	mux.HandleFunc("/api/tabs", s.requireToken(s.handleTabs))
	mux.HandleFunc("/api/tabs/activate", s.requireToken(s.handleActivate))
	mux.HandleFunc("/api/tabs/close", s.requireToken(s.handleClose))
	mux.HandleFunc("/api/content", s.requireToken(s.handleContent))
	mux.HandleFunc("/api/save", s.requireToken(s.handleSave))
	mux.HandleFunc("/api/run", s.requireToken(s.handleRun))
	mux.HandleFunc("/api/stop", s.requireToken(s.handleStop))
	mux.HandleFunc("/api/console", s.requireToken(s.handleConsole))
	mux.HandleFunc("/api/console/scroll", s.requireToken(s.handleConsoleScroll))
	mux.HandleFunc("/api/config", s.requireToken(s.handlePanelConfig))
	mux.HandleFunc("/api/config/value", s.requireToken(s.handlePanelConfigValue))
	mux.HandleFunc("/api/config/reset", s.requireToken(s.handlePanelConfigReset))
	mux.HandleFunc("/api/token", s.requireToken(s.handleToken))
	mux.HandleFunc("/api/activity", s.requireToken(s.handleActivity))
	mux.HandleFunc("/api/presence", s.requireToken(s.handlePresence))
	mux.HandleFunc("/api/presence/properties", s.requireToken(s.handlePresenceProperties))
	mux.HandleFunc("/api/stream", s.requireToken(s.handleStream))

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PanelToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.PanelToken)) != 1 {
			logx.Ctx(r.Context()).With("remote", clientIP(r)).Warn("http token rejected", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, errors.New("invalid panel token"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleScripts(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("refresh") != "" {
			resp, err := s.service.RefreshScripts(r.Context(), schema.RefreshScriptsRequest{})
			if err != nil {
				log.Warn("http scripts refresh failed", "err", err)
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
			log.Info("http scripts refresh ok", "count", len(resp.Scripts))
			return
		}
		resp, err := s.service.ListScripts(r.Context(), schema.ListScriptsRequest{})
		if err != nil {
			log.Warn("http scripts list failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http scripts list ok", "count", len(resp.Scripts))
	case http.MethodPost:
		resp, err := s.service.CreateScript(r.Context(), schema.CreateScriptRequest{})
		if err != nil {
			log.Warn("http scripts create failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http scripts create ok", "script", resp.Tab.Script.ID, "name", resp.Tab.Script.Name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleScriptGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scriptID := schema.ScriptID(r.URL.Query().Get("script_id"))
	log := logx.WithScript(r.Context(), scriptID)
	resp, err := s.service.GetScript(r.Context(), schema.GetScriptRequest{ScriptID: scriptID})
	if err != nil {
		log.Warn("http script get failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http script get ok", "name", resp.Script.Name, "content_len", len(resp.Content))
}

func (s *Server) handleScriptOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http script open decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.OpenScript(r.Context(), schema.OpenScriptRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
	})
	if err != nil {
		log.Warn("http script open failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http script open ok", "script", resp.Tab.Script.ID, "tab", resp.Tab.Index)
}

func (s *Server) handleScriptRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
		NewName  string `json:"new_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http script rename decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RenameScript(r.Context(), schema.RenameScriptRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
		NewName:  schema.ScriptName(payload.NewName),
	})
	if err != nil {
		log.Warn("http script rename failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http script rename ok", "script", resp.Script.ID, "name", resp.Script.Name)
}

func (s *Server) handleScriptDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
		Force    bool   `json:"force"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http script delete decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.DeleteScript(r.Context(), schema.DeleteScriptRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
		Force:    payload.Force,
	})
	if err != nil {
		log.Warn("http script delete failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http script delete ok", "script", payload.ScriptID, "deleted", resp.Deleted)
}

func (s *Server) handleScriptReveal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http script reveal decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RevealScript(r.Context(), schema.RevealScriptRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
	})
	if err != nil {
		log.Warn("http script reveal failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http script reveal ok", "script", payload.ScriptID)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{})
	if err != nil {
		log.Warn("http tabs list failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http tabs list ok", "count", len(resp.Tabs))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http activate decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.ActivateTab(r.Context(), schema.ActivateTabRequest{Index: payload.Index})
	if err != nil {
		log.Warn("http activate failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http activate ok", "index", payload.Index, "activated", resp.Activated)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Index int  `json:"index"`
		Force bool `json:"force"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http close decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{
		Index: payload.Index,
		Force: payload.Force,
	})
	if err != nil {
		log.Warn("http close failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http close ok", "index", payload.Index, "closed", resp.Closed)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
		Content  string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http content decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.SetContent(r.Context(), schema.SetContentRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
		Content:  payload.Content,
	})
	if err != nil {
		log.Warn("http content failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http content ok", "script", payload.ScriptID, "dirty", resp.Dirty, "content_len", len(payload.Content))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.SaveActive(r.Context(), schema.SaveActiveRequest{})
	if err != nil {
		log.Warn("http save failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http save ok", "script", resp.Script.ID, "saved", resp.Saved)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.RunActive(r.Context(), schema.RunActiveRequest{})
	if err != nil {
		log.Warn("http run failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http run ok", "script", resp.Script.ID, "accepted", resp.Accepted)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.StopActive(r.Context(), schema.StopActiveRequest{})
	if err != nil {
		log.Warn("http stop failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http stop ok")
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scriptID := schema.ScriptID(r.URL.Query().Get("script_id"))
	log := logx.WithScript(r.Context(), scriptID)
	limit := parseInt(r.URL.Query().Get("limit"), s.cfg.InitialConsoleLines)
	resp, err := s.service.GetConsole(r.Context(), schema.GetConsoleRequest{
		ScriptID: scriptID,
		Limit:    limit,
	})
	if err != nil {
		log.Warn("http console failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http console ok", "lines", resp.Console.TotalLines)
}

func (s *Server) handleConsoleScroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		ScriptID string `json:"script_id"`
		Delta    int    `json:"delta"`
		Limit    int    `json:"limit"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http console scroll decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = s.cfg.InitialConsoleLines
	}
	resp, err := s.service.ScrollConsole(r.Context(), schema.ScrollConsoleRequest{
		ScriptID: schema.ScriptID(payload.ScriptID),
		Delta:    payload.Delta,
		Limit:    limit,
	})
	if err != nil {
		log.Warn("http console scroll failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http console scroll ok", "script", payload.ScriptID, "offset", resp.Console.ScrollOffset)
}

func (s *Server) handlePanelConfig(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.panelCfg.Document())
		log.Debug("http config get ok")
	case http.MethodPost:
		var changes map[string]any
		if err := decodeJSON(r.Body, &changes); err != nil {
			log.Warn("http config decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		changed := s.panelCfg.Apply(changes)
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
		log.Info("http config apply ok", "keys", len(changes), "changed", changed)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePanelConfigValue(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		key := r.URL.Query().Get("key")
		if strings.TrimSpace(key) == "" {
			writeError(w, http.StatusBadRequest, errors.New("key is required"))
			return
		}
		result := s.panelCfg.Get(key)
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": result.Value()})
		log.Debug("http config value get ok", "key", key)
	case http.MethodPost:
		var payload struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http config value decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(payload.Key) == "" {
			writeError(w, http.StatusBadRequest, errors.New("key is required"))
			return
		}
		if err := s.panelCfg.Set(payload.Key, payload.Value); err != nil {
			log.Warn("http config value set failed", "key", payload.Key, "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Info("http config value set ok", "key", payload.Key)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePanelConfigReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	if err := s.panelCfg.ResetToDefaults(); err != nil {
		log.Warn("http config reset failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http config reset ok")
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	switch r.Method {
	case http.MethodGet:
		token, err := s.tokens.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("http token status failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"present": token != ""})
		log.Debug("http token status ok", "present", token != "")
	case http.MethodPost:
		var payload struct {
			Token string `json:"token"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http token decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !tokenstore.ValidateToken(payload.Token) {
			log.Warn("http token rejected", "reason", "malformed")
			writeError(w, http.StatusBadRequest, errors.New("token is malformed"))
			return
		}
		if err := s.tokens.Save(payload.Token); err != nil {
			log.Warn("http token save failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Info("http token saved")
	case http.MethodDelete:
		if err := s.tokens.Clear(); err != nil {
			log.Warn("http token clear failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Info("http token cleared")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		days := parseInt(r.URL.Query().Get("days"), 7)
		history, err := s.activity.History(days)
		if err != nil {
			log.Warn("http activity history failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
		log.Debug("http activity history ok", "days", days)
	case http.MethodPost:
		var payload struct {
			Type string `json:"type"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http activity decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.activity.Record(activity.Type(payload.Type)); err != nil {
			log.Warn("http activity record failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Debug("http activity record ok", "type", payload.Type)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		s.presMu.Lock()
		current := s.presence
		s.presMu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"activity": current})
		log.Debug("http presence get ok", "set", current != nil)
	case http.MethodPost:
		var payload presence.Activity
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http presence decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		normalized, err := presence.Normalize(payload)
		if err != nil {
			log.Warn("http presence rejected", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.presMu.Lock()
		s.presence = &normalized
		s.presMu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"activity": normalized})
		log.Info("http presence set ok", "application", normalized.ApplicationID, "name", normalized.Name)
	case http.MethodDelete:
		s.presMu.Lock()
		s.presence = nil
		s.presMu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Info("http presence cleared")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePresenceProperties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	platform := presence.Platform(r.URL.Query().Get("platform"))
	if platform == "" {
		platform = presence.PlatformDesktop
	}
	props := presence.Properties(platform)
	encoded, err := props.Encode()
	if err != nil {
		log.Warn("http presence properties failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props, "encoded": encoded})
	log.Debug("http presence properties ok", "platform", platform)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	snapshot := s.buildSnapshot(r.Context())
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe, _, _ := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "scripts", len(snapshot.Scripts), "tabs", len(snapshot.Tabs))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(ctx context.Context) SnapshotPayload {
	scriptsResp, err := s.service.ListScripts(ctx, schema.ListScriptsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	tabsResp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	consoles := make(map[schema.ScriptID]schema.ConsoleSnapshot)
	for _, tab := range tabsResp.Tabs {
		consoleResp, err := s.service.GetConsole(ctx, schema.GetConsoleRequest{
			ScriptID: tab.Script.ID,
			Limit:    s.cfg.InitialConsoleLines,
		})
		if err != nil {
			continue
		}
		consoles[tab.Script.ID] = consoleResp.Console
	}
	return SnapshotPayload{
		Scripts:   scriptsResp.Scripts,
		Tabs:      tabsResp.Tabs,
		ActiveTab: tabsResp.ActiveTab,
		Consoles:  consoles,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrScriptNotFound), errors.Is(err, schema.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrNoActiveTab), errors.Is(err, schema.ErrScriptBusy):
		return http.StatusConflict
	case errors.Is(err, schema.ErrBridgeUnavailable), errors.Is(err, schema.ErrExecUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
