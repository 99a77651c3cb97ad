package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"orbyte.systems/orbyte/schema"
)

type fakeBridge struct {
	mu       sync.Mutex
	files    map[schema.ScriptName]string
	revealed []schema.ScriptName
	loadErr  error
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{files: make(map[schema.ScriptName]string)}
}

func (b *fakeBridge) List(ctx context.Context) ([]schema.ScriptRef, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	refs := make([]schema.ScriptRef, 0, len(b.files))
	for name := range b.files {
		refs = append(refs, schema.ScriptRef{Name: name, Path: "/scripts/" + string(name)})
	}
	return refs, nil
}

func (b *fakeBridge) Load(ctx context.Context, name schema.ScriptName) (string, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return "", b.loadErr
	}
	content, ok := b.files[name]
	if !ok {
		return "", schema.ErrScriptNotFound
	}
	return content, nil
}

func (b *fakeBridge) Save(ctx context.Context, name schema.ScriptName, content string) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = content
	return nil
}

func (b *fakeBridge) Rename(ctx context.Context, oldName, newName schema.ScriptName) (schema.ScriptRef, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.files[oldName]
	if !ok {
		return schema.ScriptRef{}, schema.ErrScriptNotFound
	}
	delete(b.files, oldName)
	b.files[newName] = content
	return schema.ScriptRef{Name: newName, Path: "/scripts/" + string(newName)}, nil
}

func (b *fakeBridge) Delete(ctx context.Context, name schema.ScriptName) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[name]; !ok {
		return schema.ErrScriptNotFound
	}
	delete(b.files, name)
	return nil
}

func (b *fakeBridge) Reveal(ctx context.Context, name schema.ScriptName) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revealed = append(b.revealed, name)
	return nil
}

func (b *fakeBridge) get(name schema.ScriptName) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.files[name]
	return content, ok
}

type sinkRecorder struct {
	mu     sync.Mutex
	script []schema.ScriptEvent
	exec   []schema.ExecEvent
}

func (r *sinkRecorder) OnScriptEvent(event schema.ScriptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, event)
}

func (r *sinkRecorder) OnExecEvent(event schema.ExecEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec = append(r.exec, event)
}

func (r *sinkRecorder) scriptEvents() []schema.ScriptEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.ScriptEvent(nil), r.script...)
}

func (r *sinkRecorder) execEvents() []schema.ExecEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.ExecEvent(nil), r.exec...)
}

type approveAll struct{}

func (approveAll) ConfirmDiscard(ctx context.Context, name schema.ScriptName) bool { return true }
func (approveAll) ConfirmDelete(ctx context.Context, name schema.ScriptName) bool  { return true }

func newTestService(t *testing.T, deps ServiceDeps) Service {
	t.Helper()
	svc, err := NewService(schema.ServiceConfig{StateDir: t.TempDir()}, deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func openByName(t *testing.T, svc Service, name schema.ScriptName) schema.TabSnapshot {
	t.Helper()
	ctx := context.Background()
	listResp, err := svc.ListScripts(ctx, schema.ListScriptsRequest{})
	if err != nil {
		t.Fatalf("list scripts: %v", err)
	}
	for _, snap := range listResp.Scripts {
		if snap.Name == name {
			openResp, err := svc.OpenScript(ctx, schema.OpenScriptRequest{ScriptID: snap.ID})
			if err != nil {
				t.Fatalf("open %s: %v", name, err)
			}
			return openResp.Tab
		}
	}
	t.Fatalf("script %s not in inventory", name)
	return schema.TabSnapshot{}
}

func TestCreateScriptSynthesizesUntitledNames(t *testing.T) {
	bridge := newFakeBridge()
	sink := &sinkRecorder{}
	svc := newTestService(t, ServiceDeps{Bridge: bridge, EventSink: sink})
	ctx := context.Background()

	first, err := svc.CreateScript(ctx, schema.CreateScriptRequest{})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.Tab.Script.Name != "untitled.js" {
		t.Fatalf("expected untitled.js, got %q", first.Tab.Script.Name)
	}
	if !first.Tab.Script.Active {
		t.Fatalf("created tab should be active")
	}
	second, err := svc.CreateScript(ctx, schema.CreateScriptRequest{})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.Tab.Script.Name != "untitled_2.js" {
		t.Fatalf("expected untitled_2.js, got %q", second.Tab.Script.Name)
	}
	if second.Tab.Index != 1 {
		t.Fatalf("expected tab index 1, got %d", second.Tab.Index)
	}
	events := sink.scriptEvents()
	if len(events) < 2 || events[0].Type != schema.ScriptEventCreated {
		t.Fatalf("expected created events, got %+v", events)
	}
}

func TestCreateScriptStartsDirtyAndUnsaved(t *testing.T) {
	bridge := newFakeBridge()
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()

	created, err := svc.CreateScript(ctx, schema.CreateScriptRequest{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Tab.Script.Dirty {
		t.Fatalf("new script should start dirty, got %+v", created.Tab.Script)
	}
	if _, ok := bridge.get("untitled.js"); ok {
		t.Fatalf("create should not touch the bridge before the first save")
	}

	saveResp, err := svc.SaveActive(ctx, schema.SaveActiveRequest{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saveResp.Saved || saveResp.Script.Dirty {
		t.Fatalf("expected clean first save, got %+v", saveResp)
	}
	if content, ok := bridge.get("untitled.js"); !ok || content != schema.DefaultScriptBody {
		t.Fatalf("bridge content after first save = %q, %v", content, ok)
	}
}

func TestRefreshScriptsReconcilesInventory(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	bridge.files["beta.js"] = "b"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()

	refreshResp, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(refreshResp.Scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(refreshResp.Scripts))
	}

	openByName(t, svc, "alpha.js")
	bridge.mu.Lock()
	delete(bridge.files, "alpha.js")
	delete(bridge.files, "beta.js")
	bridge.mu.Unlock()

	refreshResp, err = svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{})
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	// alpha.js stays because its tab is open; beta.js is dropped.
	if len(refreshResp.Scripts) != 1 || refreshResp.Scripts[0].Name != "alpha.js" {
		t.Fatalf("unexpected inventory after refresh: %+v", refreshResp.Scripts)
	}
}

func TestOpenScriptLoadFailureStartsEmpty(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "on disk"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	bridge.mu.Lock()
	bridge.loadErr = errors.New("disk exploded")
	bridge.mu.Unlock()

	// An unreadable script still opens, with an empty buffer as the save
	// baseline.
	tab := openByName(t, svc, "alpha.js")
	getResp, err := svc.GetScript(ctx, schema.GetScriptRequest{ScriptID: tab.Script.ID})
	if err != nil {
		t.Fatalf("get script: %v", err)
	}
	if getResp.Content != "" || getResp.Script.Dirty {
		t.Fatalf("expected empty clean buffer, got %+v content %q", getResp.Script, getResp.Content)
	}

	bridge.mu.Lock()
	bridge.loadErr = nil
	bridge.mu.Unlock()

	if _, err := svc.SetContent(ctx, schema.SetContentRequest{ScriptID: tab.Script.ID, Content: "recovered"}); err != nil {
		t.Fatalf("set content: %v", err)
	}
	if _, err := svc.SaveActive(ctx, schema.SaveActiveRequest{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if content, _ := bridge.get("alpha.js"); content != "recovered" {
		t.Fatalf("bridge content %q, want recovered", content)
	}
}

func TestOpenScriptIsIdempotent(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	bridge.files["beta.js"] = "b"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	alpha := openByName(t, svc, "alpha.js")
	openByName(t, svc, "beta.js")
	reopened := openByName(t, svc, "alpha.js")
	if reopened.Index != alpha.Index {
		t.Fatalf("reopen created a new tab: %d vs %d", reopened.Index, alpha.Index)
	}
	tabsResp, err := svc.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		t.Fatalf("list tabs: %v", err)
	}
	if len(tabsResp.Tabs) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(tabsResp.Tabs))
	}
	if tabsResp.ActiveTab != reopened.Script.ID {
		t.Fatalf("expected alpha active after reopen")
	}
}

func TestSetContentTracksDirtyAndSave(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "original"
	sink := &sinkRecorder{}
	svc := newTestService(t, ServiceDeps{Bridge: bridge, EventSink: sink})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")

	setResp, err := svc.SetContent(ctx, schema.SetContentRequest{ScriptID: tab.Script.ID, Content: "changed"})
	if err != nil {
		t.Fatalf("set content: %v", err)
	}
	if !setResp.Dirty {
		t.Fatalf("expected dirty after edit")
	}
	// Reverting to the saved content clears the flag again.
	setResp, err = svc.SetContent(ctx, schema.SetContentRequest{ScriptID: tab.Script.ID, Content: "original"})
	if err != nil {
		t.Fatalf("revert content: %v", err)
	}
	if setResp.Dirty {
		t.Fatalf("expected clean after revert")
	}

	if _, err := svc.SetContent(ctx, schema.SetContentRequest{ScriptID: tab.Script.ID, Content: "changed"}); err != nil {
		t.Fatalf("re-edit: %v", err)
	}
	saveResp, err := svc.SaveActive(ctx, schema.SaveActiveRequest{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saveResp.Saved || saveResp.Script.Dirty {
		t.Fatalf("expected clean save, got %+v", saveResp)
	}
	if content, _ := bridge.get("alpha.js"); content != "changed" {
		t.Fatalf("bridge content %q, want changed", content)
	}

	saveResp, err = svc.SaveActive(ctx, schema.SaveActiveRequest{})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if saveResp.Saved {
		t.Fatalf("clean save should be a no-op")
	}
}

func TestSaveActiveWithoutTabs(t *testing.T) {
	svc := newTestService(t, ServiceDeps{Bridge: newFakeBridge()})
	resp, err := svc.SaveActive(context.Background(), schema.SaveActiveRequest{})
	if err != nil {
		t.Fatalf("save without tabs: %v", err)
	}
	if resp.Saved {
		t.Fatalf("save without tabs should be a no-op")
	}
}

func TestRenameScriptMovesAndValidates(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	bridge.files["beta.js"] = "b"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")

	if _, err := svc.RenameScript(ctx, schema.RenameScriptRequest{ScriptID: tab.Script.ID, NewName: "beta"}); !errors.Is(err, schema.ErrInvalidName) {
		t.Fatalf("expected collision rejection, got %v", err)
	}
	if _, err := svc.RenameScript(ctx, schema.RenameScriptRequest{ScriptID: tab.Script.ID, NewName: "bad/name"}); !errors.Is(err, schema.ErrInvalidName) {
		t.Fatalf("expected slash rejection, got %v", err)
	}

	renameResp, err := svc.RenameScript(ctx, schema.RenameScriptRequest{ScriptID: tab.Script.ID, NewName: "gamma"})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renameResp.Script.Name != "gamma.js" {
		t.Fatalf("expected gamma.js, got %q", renameResp.Script.Name)
	}
	if _, ok := bridge.get("alpha.js"); ok {
		t.Fatalf("old file still present")
	}
	if _, ok := bridge.get("gamma.js"); !ok {
		t.Fatalf("new file missing")
	}
}

func TestCloseDirtyTabNeedsConfirmation(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "original"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")
	if _, err := svc.SetContent(ctx, schema.SetContentRequest{ScriptID: tab.Script.ID, Content: "changed"}); err != nil {
		t.Fatalf("set content: %v", err)
	}

	// No confirmer configured: the prompt counts as declined.
	closeResp, err := svc.CloseTab(ctx, schema.CloseTabRequest{Index: tab.Index})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closeResp.Closed {
		t.Fatalf("dirty close without confirmation should be declined")
	}

	closeResp, err = svc.CloseTab(ctx, schema.CloseTabRequest{Index: tab.Index, Force: true})
	if err != nil {
		t.Fatalf("forced close: %v", err)
	}
	if !closeResp.Closed {
		t.Fatalf("forced close should succeed")
	}
	// Unsaved edits are discarded on close.
	getResp, err := svc.GetScript(ctx, schema.GetScriptRequest{ScriptID: tab.Script.ID})
	if err != nil {
		t.Fatalf("get script: %v", err)
	}
	if getResp.Content != "original" || getResp.Script.Dirty {
		t.Fatalf("expected discarded edits, got %+v content %q", getResp.Script, getResp.Content)
	}
}

func TestCloseActiveTabPicksNeighbor(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["a.js"] = "1"
	bridge.files["b.js"] = "2"
	bridge.files["c.js"] = "3"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	openByName(t, svc, "a.js")
	openByName(t, svc, "b.js")
	openByName(t, svc, "c.js")

	if _, err := svc.ActivateTab(ctx, schema.ActivateTabRequest{Index: 1}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	closeResp, err := svc.CloseTab(ctx, schema.CloseTabRequest{Index: 1})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	tabsResp, err := svc.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		t.Fatalf("list tabs: %v", err)
	}
	if len(tabsResp.Tabs) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(tabsResp.Tabs))
	}
	// The tab that moved into the closed slot becomes active.
	if tabsResp.Tabs[1].Script.Name != "c.js" || closeResp.ActiveTab != tabsResp.Tabs[1].Script.ID {
		t.Fatalf("expected c.js active, got %+v active %q", tabsResp.Tabs, closeResp.ActiveTab)
	}

	// Closing the last remaining active tab falls back to the previous one.
	if _, err := svc.CloseTab(ctx, schema.CloseTabRequest{Index: 1}); err != nil {
		t.Fatalf("close last: %v", err)
	}
	tabsResp, _ = svc.ListTabs(ctx, schema.ListTabsRequest{})
	if len(tabsResp.Tabs) != 1 || tabsResp.ActiveTab != tabsResp.Tabs[0].Script.ID {
		t.Fatalf("expected a.js active, got %+v", tabsResp)
	}
}

func TestActivateTabOutOfRangeIsIgnored(t *testing.T) {
	svc := newTestService(t, ServiceDeps{Bridge: newFakeBridge()})
	resp, err := svc.ActivateTab(context.Background(), schema.ActivateTabRequest{Index: 7})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.Activated {
		t.Fatalf("out-of-range activation should be ignored")
	}
}

func TestDeleteScriptRemovesEverywhere(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	svc := newTestService(t, ServiceDeps{Bridge: bridge, Confirmer: approveAll{}})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")

	deleteResp, err := svc.DeleteScript(ctx, schema.DeleteScriptRequest{ScriptID: tab.Script.ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleteResp.Deleted {
		t.Fatalf("expected deletion")
	}
	if _, ok := bridge.get("alpha.js"); ok {
		t.Fatalf("file still on bridge")
	}
	listResp, _ := svc.ListScripts(ctx, schema.ListScriptsRequest{})
	if len(listResp.Scripts) != 0 {
		t.Fatalf("inventory should be empty, got %+v", listResp.Scripts)
	}
	tabsResp, _ := svc.ListTabs(ctx, schema.ListTabsRequest{})
	if len(tabsResp.Tabs) != 0 || tabsResp.ActiveTab != "" {
		t.Fatalf("tabs should be empty, got %+v", tabsResp)
	}
}

func TestDeleteDeclinedWithoutConfirmer(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")
	deleteResp, err := svc.DeleteScript(ctx, schema.DeleteScriptRequest{ScriptID: tab.Script.ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleteResp.Deleted {
		t.Fatalf("delete without confirmation should be declined")
	}
	if _, ok := bridge.get("alpha.js"); !ok {
		t.Fatalf("file should survive a declined delete")
	}
}

func TestRevealScriptForwardsToBridge(t *testing.T) {
	bridge := newFakeBridge()
	bridge.files["alpha.js"] = "a"
	svc := newTestService(t, ServiceDeps{Bridge: bridge})
	ctx := context.Background()
	if _, err := svc.RefreshScripts(ctx, schema.RefreshScriptsRequest{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tab := openByName(t, svc, "alpha.js")
	if _, err := svc.RevealScript(ctx, schema.RevealScriptRequest{ScriptID: tab.Script.ID}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(bridge.revealed) != 1 || bridge.revealed[0] != "alpha.js" {
		t.Fatalf("unexpected reveals: %+v", bridge.revealed)
	}
}
