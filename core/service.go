package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"orbyte.systems/orbyte/internal/logx"
	"orbyte.systems/orbyte/internal/persist"
	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg     schema.ServiceConfig
	bridge  Bridge
	exec    Executor
	editor  EditorSurface
	sink    EventSink
	confirm Confirmer
	store   *persist.Store
	logger  pslog.Logger
	mu      sync.Mutex
	scripts map[schema.ScriptID]*script
	byName  map[schema.ScriptName]schema.ScriptID
	order   []schema.ScriptID
	active  schema.ScriptID
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Editor == nil {
		deps.Editor = NewMemoryEditor()
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &service{
		cfg:     cfg,
		bridge:  deps.Bridge,
		exec:    deps.Executor,
		editor:  deps.Editor,
		sink:    deps.EventSink,
		confirm: deps.Confirmer,
		store:   store,
		logger:  logger,
		scripts: make(map[schema.ScriptID]*script),
		byName:  make(map[schema.ScriptName]schema.ScriptID),
	}
	s.restoreWorkspace()
	return s, nil
}

// restoreWorkspace rebuilds open tabs from the persisted snapshot. A
// corrupt or unreadable snapshot is logged and the workspace starts
// empty rather than failing construction.
func (s *service) restoreWorkspace() {
	if s.store == nil {
		return
	}
	snapshot, ok, err := s.store.Load()
	if err != nil {
		s.logger.Warn("service state load failed", "err", err)
		return
	}
	if !ok {
		s.logger.Debug("service state missing")
		return
	}
	for _, snap := range snapshot.Tabs {
		if snap.ID == "" || snap.Name == "" {
			continue
		}
		sc := &script{
			ID:      snap.ID,
			Name:    snap.Name,
			Path:    snap.Path,
			console: newConsole(s.cfg.ConsoleMaxLines),
		}
		if snap.Dirty {
			sc.content = snap.Content
			sc.loaded = true
		}
		s.scripts[sc.ID] = sc
		s.byName[sc.Name] = sc.ID
		s.order = append(s.order, sc.ID)
	}
	if snapshot.ActiveTab != "" {
		if _, ok := s.scripts[snapshot.ActiveTab]; ok {
			s.active = snapshot.ActiveTab
		}
	}
	if s.active == "" && len(s.order) > 0 {
		s.active = s.order[0]
	}
	s.logger.Debug("service state loaded", "tabs", len(s.order), "active", s.active)
}

func (s *service) RefreshScripts(ctx context.Context, req schema.RefreshScriptsRequest) (schema.RefreshScriptsResponse, error) {
	_ = req
	if s.bridge == nil {
		return schema.RefreshScriptsResponse{}, schema.ErrBridgeUnavailable
	}
	log := logx.Ctx(ctx)
	refs, err := s.bridge.List(ctx)
	if err != nil {
		log.Warn("service inventory refresh failed", "err", err)
		return schema.RefreshScriptsResponse{}, err
	}

	s.mu.Lock()
	seen := make(map[schema.ScriptName]bool, len(refs))
	for _, ref := range refs {
		seen[ref.Name] = true
		if id, ok := s.byName[ref.Name]; ok {
			s.scripts[id].Path = ref.Path
			continue
		}
		sc := &script{
			ID:      schema.ScriptID(newID()),
			Name:    ref.Name,
			Path:    ref.Path,
			console: newConsole(s.cfg.ConsoleMaxLines),
		}
		s.scripts[sc.ID] = sc
		s.byName[sc.Name] = sc.ID
	}
	// Records for names no longer on disk are dropped unless still open;
	// an open tab keeps its buffer until the user closes it.
	for name, id := range s.byName {
		if seen[name] || s.tabIndexLocked(id) >= 0 {
			continue
		}
		delete(s.byName, name)
		delete(s.scripts, id)
	}
	snapshots := s.inventorySnapshotsLocked()
	event := schema.ScriptEvent{Type: schema.ScriptEventListed, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	log.Info("service inventory refreshed", "count", len(snapshots))
	return schema.RefreshScriptsResponse{Scripts: snapshots}, nil
}

func (s *service) ListScripts(ctx context.Context, req schema.ListScriptsRequest) (schema.ListScriptsResponse, error) {
	_ = req
	log := logx.Ctx(ctx)
	s.mu.Lock()
	snapshots := s.inventorySnapshotsLocked()
	s.mu.Unlock()
	log.Trace("service scripts listed", "count", len(snapshots))
	return schema.ListScriptsResponse{Scripts: snapshots}, nil
}

func (s *service) GetScript(ctx context.Context, req schema.GetScriptRequest) (schema.GetScriptResponse, error) {
	log := logx.WithScript(ctx, req.ScriptID)
	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service script get failed", "err", schema.ErrScriptNotFound)
		return schema.GetScriptResponse{}, schema.ErrScriptNotFound
	}
	if err := s.ensureLoadedLocked(ctx, sc); err != nil {
		s.mu.Unlock()
		log.Warn("service script load failed", "err", err)
		return schema.GetScriptResponse{}, err
	}
	resp := schema.GetScriptResponse{
		Script:  sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active),
		Content: sc.content,
	}
	s.mu.Unlock()
	log.Trace("service script fetched", "name", resp.Script.Name, "bytes", len(resp.Content))
	return resp, nil
}

func (s *service) OpenScript(ctx context.Context, req schema.OpenScriptRequest) (schema.OpenScriptResponse, error) {
	if ctx == nil {
		return schema.OpenScriptResponse{}, errors.New("missing context")
	}
	log := logx.WithScript(ctx, req.ScriptID)

	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service script open failed", "err", schema.ErrScriptNotFound)
		return schema.OpenScriptResponse{}, schema.ErrScriptNotFound
	}
	if idx := s.tabIndexLocked(sc.ID); idx >= 0 {
		// Opening an already-open script activates its tab.
		s.active = sc.ID
		s.editor.SetValue(sc.content)
		s.editor.Focus()
		tab := schema.TabSnapshot{Index: idx, Script: sc.Snapshot(true, true)}
		event := schema.ScriptEvent{Type: schema.ScriptEventActivated, Script: tab.Script, ActiveTab: s.active}
		s.mu.Unlock()
		s.emitScriptEvent(event)
		s.persistWorkspace(log)
		log.Info("service script reactivated", "name", tab.Script.Name)
		return schema.OpenScriptResponse{Tab: tab}, nil
	}
	if err := s.ensureLoadedLocked(ctx, sc); err != nil {
		s.mu.Unlock()
		log.Warn("service script open failed", "err", err)
		return schema.OpenScriptResponse{}, err
	}
	s.order = append(s.order, sc.ID)
	s.active = sc.ID
	s.editor.SetValue(sc.content)
	s.editor.Focus()
	tab := schema.TabSnapshot{Index: len(s.order) - 1, Script: sc.Snapshot(true, true)}
	event := schema.ScriptEvent{Type: schema.ScriptEventOpened, Script: tab.Script, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithScriptName(log, tab.Script.Name).Info("service script opened", "tab", tab.Index)
	return schema.OpenScriptResponse{Tab: tab}, nil
}

func (s *service) CreateScript(ctx context.Context, req schema.CreateScriptRequest) (schema.CreateScriptResponse, error) {
	_ = req
	log := logx.Ctx(ctx)

	s.mu.Lock()
	name := untitledName(func(candidate schema.ScriptName) bool {
		_, ok := s.byName[candidate]
		return ok
	}, s.cfg.ScriptExt)
	// New scripts live only in the editor until the first save; the empty
	// lastSaved baseline keeps them dirty from the start.
	sc := &script{
		ID:      schema.ScriptID(newID()),
		Name:    name,
		content: s.cfg.DefaultBody,
		loaded:  true,
		console: newConsole(s.cfg.ConsoleMaxLines),
	}
	s.scripts[sc.ID] = sc
	s.byName[sc.Name] = sc.ID
	s.order = append(s.order, sc.ID)
	s.active = sc.ID
	s.editor.SetValue(sc.content)
	s.editor.Focus()
	tab := schema.TabSnapshot{Index: len(s.order) - 1, Script: sc.Snapshot(true, true)}
	event := schema.ScriptEvent{Type: schema.ScriptEventCreated, Script: tab.Script, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithScriptName(log, name).Info("service script created", "tab", tab.Index)
	return schema.CreateScriptResponse{Tab: tab}, nil
}

func (s *service) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if req.Index < 0 || req.Index >= len(s.order) {
		s.mu.Unlock()
		log.Debug("service tab activate ignored", "index", req.Index, "tabs", len(s.order))
		return schema.ActivateTabResponse{Activated: false}, nil
	}
	sc := s.scripts[s.order[req.Index]]
	if err := s.ensureLoadedLocked(ctx, sc); err != nil {
		s.mu.Unlock()
		log.Warn("service tab activate failed", "index", req.Index, "err", err)
		return schema.ActivateTabResponse{}, err
	}
	s.active = sc.ID
	s.editor.SetValue(sc.content)
	s.editor.Focus()
	tab := schema.TabSnapshot{Index: req.Index, Script: sc.Snapshot(true, true)}
	event := schema.ScriptEvent{Type: schema.ScriptEventActivated, Script: tab.Script, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithTab(log, req.Index).Info("service tab activated", "name", tab.Script.Name)
	return schema.ActivateTabResponse{Activated: true, Tab: tab}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if req.Index < 0 || req.Index >= len(s.order) {
		s.mu.Unlock()
		log.Warn("service tab close failed", "index", req.Index, "err", schema.ErrTabNotFound)
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	sc := s.scripts[s.order[req.Index]]
	name := sc.Name
	needsConfirm := sc.dirty() && !req.Force
	s.mu.Unlock()

	if needsConfirm {
		if s.confirm == nil || !s.confirm.ConfirmDiscard(ctx, name) {
			log.Info("service tab close declined", "index", req.Index, "name", name)
			return schema.CloseTabResponse{Closed: false, ActiveTab: s.activeTab()}, nil
		}
	}

	s.mu.Lock()
	idx := s.tabIndexLocked(sc.ID)
	if idx < 0 {
		s.mu.Unlock()
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	// Unsaved edits are discarded with the tab.
	sc.content = sc.lastSaved
	if s.active == sc.ID {
		s.active = ""
		if len(s.order) > 0 {
			next := idx
			if next >= len(s.order) {
				next = len(s.order) - 1
			}
			s.active = s.order[next]
		}
		if s.active != "" {
			activeScript := s.scripts[s.active]
			s.editor.SetValue(activeScript.content)
			s.editor.Focus()
		} else {
			s.editor.SetValue("")
		}
	}
	active := s.active
	event := schema.ScriptEvent{Type: schema.ScriptEventClosed, Script: sc.Snapshot(false, false), ActiveTab: active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithScriptName(log, name).Info("service tab closed", "active", active)
	return schema.CloseTabResponse{Closed: true, ActiveTab: active}, nil
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	_ = req
	log := logx.Ctx(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]schema.TabSnapshot, 0, len(s.order))
	for i, id := range s.order {
		sc := s.scripts[id]
		if sc == nil {
			continue
		}
		tabs = append(tabs, schema.TabSnapshot{Index: i, Script: sc.Snapshot(true, id == s.active)})
	}
	log.Trace("service tabs listed", "count", len(tabs), "active", s.active)
	return schema.ListTabsResponse{Tabs: tabs, ActiveTab: s.active}, nil
}

func (s *service) SetContent(ctx context.Context, req schema.SetContentRequest) (schema.SetContentResponse, error) {
	log := logx.WithScript(ctx, req.ScriptID)

	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service content update failed", "err", schema.ErrScriptNotFound)
		return schema.SetContentResponse{}, schema.ErrScriptNotFound
	}
	if err := s.ensureLoadedLocked(ctx, sc); err != nil {
		s.mu.Unlock()
		log.Warn("service content update failed", "err", err)
		return schema.SetContentResponse{}, err
	}
	wasDirty := sc.dirty()
	sc.content = req.Content
	if sc.ID == s.active {
		s.editor.SetValue(req.Content)
	}
	dirty := sc.dirty()
	var event *schema.ScriptEvent
	if dirty != wasDirty {
		ev := schema.ScriptEvent{
			Type:      schema.ScriptEventDirty,
			Script:    sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active),
			ActiveTab: s.active,
		}
		event = &ev
	}
	s.mu.Unlock()

	if event != nil {
		s.emitScriptEvent(*event)
	}
	s.persistWorkspace(log)
	log.Trace("service content updated", "dirty", dirty, "bytes", len(req.Content))
	return schema.SetContentResponse{Dirty: dirty}, nil
}

func (s *service) SaveActive(ctx context.Context, req schema.SaveActiveRequest) (schema.SaveActiveResponse, error) {
	_ = req
	if s.bridge == nil {
		return schema.SaveActiveResponse{}, schema.ErrBridgeUnavailable
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.active == "" {
		s.mu.Unlock()
		log.Debug("service save skipped", "reason", "no active tab")
		return schema.SaveActiveResponse{Saved: false}, nil
	}
	sc := s.scripts[s.active]
	if !sc.dirty() {
		resp := schema.SaveActiveResponse{Saved: false, Script: sc.Snapshot(true, true)}
		s.mu.Unlock()
		log.Debug("service save skipped", "name", resp.Script.Name, "reason", "clean")
		return resp, nil
	}
	name := sc.Name
	content := sc.content
	s.mu.Unlock()

	if err := s.bridge.Save(ctx, name, content); err != nil {
		logx.WithScriptName(log, name).Warn("service save failed", "err", err)
		return schema.SaveActiveResponse{}, err
	}

	s.mu.Lock()
	sc.lastSaved = content
	snapshot := sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active)
	event := schema.ScriptEvent{Type: schema.ScriptEventSaved, Script: snapshot, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithScriptName(log, name).Info("service script saved", "bytes", len(content))
	return schema.SaveActiveResponse{Saved: true, Script: snapshot}, nil
}

func (s *service) RenameScript(ctx context.Context, req schema.RenameScriptRequest) (schema.RenameScriptResponse, error) {
	if s.bridge == nil {
		return schema.RenameScriptResponse{}, schema.ErrBridgeUnavailable
	}
	log := logx.WithScript(ctx, req.ScriptID)

	newName, err := NormalizeScriptName(string(req.NewName), s.cfg.ScriptExt, s.cfg.NameMax)
	if err != nil {
		log.Warn("service rename rejected", "new_name", req.NewName, "err", err)
		return schema.RenameScriptResponse{}, err
	}

	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service rename failed", "err", schema.ErrScriptNotFound)
		return schema.RenameScriptResponse{}, schema.ErrScriptNotFound
	}
	if sc.running {
		s.mu.Unlock()
		log.Warn("service rename failed", "err", schema.ErrScriptBusy)
		return schema.RenameScriptResponse{}, schema.ErrScriptBusy
	}
	oldName := sc.Name
	if newName == oldName {
		resp := schema.RenameScriptResponse{Script: sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active)}
		s.mu.Unlock()
		return resp, nil
	}
	for name, id := range s.byName {
		if id != sc.ID && strings.EqualFold(string(name), string(newName)) {
			s.mu.Unlock()
			log.Warn("service rename failed", "new_name", newName, "err", schema.ErrInvalidName)
			return schema.RenameScriptResponse{}, fmt.Errorf("%w: %s already exists", schema.ErrInvalidName, newName)
		}
	}
	s.mu.Unlock()

	ref, err := s.bridge.Rename(ctx, oldName, newName)
	if err != nil {
		logx.WithScriptName(log, oldName).Warn("service rename failed", "new_name", newName, "err", err)
		return schema.RenameScriptResponse{}, err
	}

	s.mu.Lock()
	delete(s.byName, oldName)
	sc.Name = ref.Name
	sc.Path = ref.Path
	s.byName[sc.Name] = sc.ID
	snapshot := sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active)
	event := schema.ScriptEvent{Type: schema.ScriptEventRenamed, Script: snapshot, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	log.Info("service script renamed", "from", oldName, "to", newName)
	return schema.RenameScriptResponse{Script: snapshot}, nil
}

func (s *service) DeleteScript(ctx context.Context, req schema.DeleteScriptRequest) (schema.DeleteScriptResponse, error) {
	if s.bridge == nil {
		return schema.DeleteScriptResponse{}, schema.ErrBridgeUnavailable
	}
	log := logx.WithScript(ctx, req.ScriptID)

	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service delete failed", "err", schema.ErrScriptNotFound)
		return schema.DeleteScriptResponse{}, schema.ErrScriptNotFound
	}
	name := sc.Name
	running := sc.running
	s.mu.Unlock()

	if !req.Force {
		if s.confirm == nil || !s.confirm.ConfirmDelete(ctx, name) {
			log.Info("service delete declined", "name", name)
			return schema.DeleteScriptResponse{Deleted: false, ActiveTab: s.activeTab()}, nil
		}
	}

	if running && s.exec != nil {
		s.exec.Stop(ctx, name)
	}
	if err := s.bridge.Delete(ctx, name); err != nil && !errors.Is(err, schema.ErrScriptNotFound) {
		logx.WithScriptName(log, name).Warn("service delete failed", "err", err)
		return schema.DeleteScriptResponse{}, err
	}

	s.mu.Lock()
	if idx := s.tabIndexLocked(sc.ID); idx >= 0 {
		s.order = append(s.order[:idx], s.order[idx+1:]...)
		if s.active == sc.ID {
			s.active = ""
			if len(s.order) > 0 {
				next := idx
				if next >= len(s.order) {
					next = len(s.order) - 1
				}
				s.active = s.order[next]
			}
			if s.active != "" {
				activeScript := s.scripts[s.active]
				s.editor.SetValue(activeScript.content)
			} else {
				s.editor.SetValue("")
			}
		}
	}
	delete(s.byName, sc.Name)
	delete(s.scripts, sc.ID)
	active := s.active
	event := schema.ScriptEvent{Type: schema.ScriptEventDeleted, Script: sc.Snapshot(false, false), ActiveTab: active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	s.persistWorkspace(log)
	logx.WithScriptName(log, name).Info("service script deleted", "active", active)
	return schema.DeleteScriptResponse{Deleted: true, ActiveTab: active}, nil
}

func (s *service) RevealScript(ctx context.Context, req schema.RevealScriptRequest) (schema.RevealScriptResponse, error) {
	if s.bridge == nil {
		return schema.RevealScriptResponse{}, schema.ErrBridgeUnavailable
	}
	log := logx.WithScript(ctx, req.ScriptID)

	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	s.mu.Unlock()
	if sc == nil {
		log.Warn("service reveal failed", "err", schema.ErrScriptNotFound)
		return schema.RevealScriptResponse{}, schema.ErrScriptNotFound
	}
	if err := s.bridge.Reveal(ctx, sc.Name); err != nil {
		logx.WithScriptName(log, sc.Name).Warn("service reveal failed", "err", err)
		return schema.RevealScriptResponse{}, err
	}
	logx.WithScriptName(log, sc.Name).Debug("service script revealed")
	return schema.RevealScriptResponse{}, nil
}

func (s *service) RunActive(ctx context.Context, req schema.RunActiveRequest) (schema.RunActiveResponse, error) {
	_ = req
	if s.exec == nil {
		return schema.RunActiveResponse{}, schema.ErrExecUnavailable
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.active == "" {
		s.mu.Unlock()
		log.Warn("service run failed", "err", schema.ErrNoActiveTab)
		return schema.RunActiveResponse{}, schema.ErrNoActiveTab
	}
	sc := s.scripts[s.active]
	dirty := sc.dirty()
	s.mu.Unlock()

	// Unsaved edits are persisted before the run so the engine and the
	// file on disk agree.
	if dirty {
		if _, err := s.SaveActive(ctx, schema.SaveActiveRequest{}); err != nil {
			return schema.RunActiveResponse{}, err
		}
	}

	s.mu.Lock()
	name := sc.Name
	content := sc.content
	s.mu.Unlock()

	result := s.exec.Run(ctx, name, content)
	if !result.Success {
		logx.WithScriptName(log, name).Warn("service run rejected", "err", result.Error)
		s.mu.Lock()
		snapshot := sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active)
		s.mu.Unlock()
		return schema.RunActiveResponse{Accepted: false, Script: snapshot}, nil
	}

	s.mu.Lock()
	sc.running = true
	snapshot := sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active)
	event := schema.ScriptEvent{Type: schema.ScriptEventStatus, Script: snapshot, ActiveTab: s.active}
	s.mu.Unlock()

	s.emitScriptEvent(event)
	logx.WithScriptName(log, name).Info("service run accepted")
	return schema.RunActiveResponse{Accepted: true, Script: snapshot}, nil
}

func (s *service) StopActive(ctx context.Context, req schema.StopActiveRequest) (schema.StopActiveResponse, error) {
	_ = req
	if s.exec == nil {
		return schema.StopActiveResponse{}, schema.ErrExecUnavailable
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.active == "" {
		s.mu.Unlock()
		log.Warn("service stop failed", "err", schema.ErrNoActiveTab)
		return schema.StopActiveResponse{}, schema.ErrNoActiveTab
	}
	name := s.scripts[s.active].Name
	s.mu.Unlock()

	s.exec.Stop(ctx, name)
	logx.WithScriptName(log, name).Info("service stop requested")
	return schema.StopActiveResponse{}, nil
}

func (s *service) GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error) {
	log := logx.WithScript(ctx, req.ScriptID)
	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service console get failed", "err", schema.ErrScriptNotFound)
		return schema.GetConsoleResponse{}, schema.ErrScriptNotFound
	}
	view := sc.console.Snapshot(req.Limit)
	s.mu.Unlock()
	log.Trace("service console snapshot", "lines", view.TotalLines, "offset", view.ScrollOffset, "limit", req.Limit)
	return schema.GetConsoleResponse{Console: mapConsoleSnapshot(req.ScriptID, view)}, nil
}

func (s *service) ScrollConsole(ctx context.Context, req schema.ScrollConsoleRequest) (schema.ScrollConsoleResponse, error) {
	log := logx.WithScript(ctx, req.ScriptID)
	s.mu.Lock()
	sc := s.scripts[req.ScriptID]
	if sc == nil {
		s.mu.Unlock()
		log.Warn("service console scroll failed", "err", schema.ErrScriptNotFound)
		return schema.ScrollConsoleResponse{}, schema.ErrScriptNotFound
	}
	sc.console.Scroll(req.Delta, req.Limit)
	view := sc.console.Snapshot(req.Limit)
	s.mu.Unlock()
	log.Debug("service console scrolled", "offset", view.ScrollOffset, "limit", req.Limit)
	return schema.ScrollConsoleResponse{Console: mapConsoleSnapshot(req.ScriptID, view)}, nil
}

// HandleExecEvent folds an execution event into script state and forwards
// it to the sink. Events for unknown names are dropped.
func (s *service) HandleExecEvent(ctx context.Context, event schema.ExecEvent) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	id, ok := s.byName[event.Filename]
	if !ok {
		s.mu.Unlock()
		log.Trace("service exec event dropped", "name", event.Filename, "type", event.Type)
		return
	}
	sc := s.scripts[id]
	var statusEvent *schema.ScriptEvent
	switch event.Type {
	case schema.ExecStarted:
		sc.console.Reset()
		if !sc.running {
			sc.running = true
			ev := schema.ScriptEvent{
				Type:      schema.ScriptEventStatus,
				Script:    sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active),
				ActiveTab: s.active,
			}
			statusEvent = &ev
		}
	case schema.ExecOutput:
		sc.console.Append(splitLines(event.Content)...)
	case schema.ExecError:
		sc.console.Append(splitLines("error: "+event.Error)...)
	case schema.ExecEnded:
		if sc.running {
			sc.running = false
			ev := schema.ScriptEvent{
				Type:      schema.ScriptEventStatus,
				Script:    sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active),
				ActiveTab: s.active,
			}
			statusEvent = &ev
		}
	}
	s.mu.Unlock()

	if statusEvent != nil {
		s.emitScriptEvent(*statusEvent)
	}
	s.emitExecEvent(event)
	log.Trace("service exec event handled", "name", event.Filename, "type", event.Type)
}

// ensureLoadedLocked pulls content from the bridge on first use. The
// caller must hold s.mu.
func (s *service) ensureLoadedLocked(ctx context.Context, sc *script) error {
	if sc.loaded {
		return nil
	}
	if s.bridge == nil {
		return schema.ErrBridgeUnavailable
	}
	content, err := s.bridge.Load(ctx, sc.Name)
	if err != nil {
		// A script that failed to read opens as an empty buffer; there is
		// nothing on the editor side to lose yet, and the empty baseline
		// keeps the first save from clobbering state silently marked clean.
		logx.WithScriptName(logx.Ctx(ctx), sc.Name).Warn("service script load failed, starting empty", "err", err)
		content = ""
	}
	sc.content = content
	sc.lastSaved = content
	sc.loaded = true
	return nil
}

func (s *service) inventorySnapshotsLocked() []schema.ScriptSnapshot {
	snapshots := make([]schema.ScriptSnapshot, 0, len(s.scripts))
	for _, sc := range s.scripts {
		snapshots = append(snapshots, sc.Snapshot(s.tabIndexLocked(sc.ID) >= 0, sc.ID == s.active))
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return strings.ToLower(string(snapshots[i].Name)) < strings.ToLower(string(snapshots[j].Name))
	})
	return snapshots
}

func (s *service) tabIndexLocked(id schema.ScriptID) int {
	for i, current := range s.order {
		if current == id {
			return i
		}
	}
	return -1
}

func (s *service) activeTab() schema.ScriptID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *service) emitScriptEvent(event schema.ScriptEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnScriptEvent(event)
}

func (s *service) emitExecEvent(event schema.ExecEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnExecEvent(event)
}

func (s *service) persistWorkspace(log pslog.Logger) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	tabs := make([]persist.TabSnapshot, 0, len(s.order))
	for _, id := range s.order {
		sc := s.scripts[id]
		if sc == nil {
			continue
		}
		snap := persist.TabSnapshot{ID: sc.ID, Name: sc.Name, Path: sc.Path, Dirty: sc.dirty()}
		if snap.Dirty {
			snap.Content = sc.content
		}
		tabs = append(tabs, snap)
	}
	snapshot := persist.WorkspaceSnapshot{Tabs: tabs, ActiveTab: s.active}
	s.mu.Unlock()
	if err := s.store.Save(snapshot); err != nil {
		if log != nil {
			log.Warn("service persist failed", "err", err)
		}
		return
	}
	if log != nil {
		log.Trace("service state persisted", "tabs", len(tabs))
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func mapConsoleSnapshot(id schema.ScriptID, view consoleView) schema.ConsoleSnapshot {
	return schema.ConsoleSnapshot{
		ScriptID:     id,
		Lines:        view.Lines,
		TotalLines:   view.TotalLines,
		ScrollOffset: view.ScrollOffset,
		AtBottom:     view.AtBottom,
	}
}
