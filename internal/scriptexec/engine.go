package scriptexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// Notifier receives asynchronous execution events.
type Notifier func(schema.ExecEvent)

// Config controls engine limits.
type Config struct {
	// Timeout aborts a run after the given duration. Zero means no limit.
	Timeout time.Duration
}

// Engine runs script content in dedicated JavaScript VMs, one per script
// name. Output is captured and forwarded as events in real time.
type Engine struct {
	cfg     Config
	notify  Notifier
	log     pslog.Logger
	mu      sync.Mutex
	running map[schema.ScriptName]*run
}

type run struct {
	vm     *goja.Runtime
	cancel chan struct{}
	done   chan struct{}
}

// New constructs an engine. notify must not be nil.
func New(cfg Config, notify Notifier, logger pslog.Logger) *Engine {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Engine{
		cfg:     cfg,
		notify:  notify,
		log:     logger,
		running: make(map[schema.ScriptName]*run),
	}
}

// Running reports whether a run is in flight for the given name.
func (e *Engine) Running(name schema.ScriptName) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[name]
	return ok
}

// Run starts executing content under the given script name. A run already
// in flight for the same name is stopped first.
func (e *Engine) Run(ctx context.Context, name schema.ScriptName, content string) schema.RunResult {
	if e.notify == nil {
		return schema.RunResult{Success: false, Error: "no event notifier configured"}
	}
	if strings.TrimSpace(string(name)) == "" {
		return schema.RunResult{Success: false, Error: "script name is required"}
	}
	log := e.log.With("name", name)

	e.mu.Lock()
	if prev, ok := e.running[name]; ok {
		e.mu.Unlock()
		log.Info("exec restart, stopping previous run")
		e.stopRun(prev)
		select {
		case <-prev.done:
		case <-ctx.Done():
			return schema.RunResult{Success: false, Error: ctx.Err().Error()}
		}
		e.mu.Lock()
	}

	vm := goja.New()
	r := &run{
		vm:     vm,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.running[name] = r
	e.mu.Unlock()

	e.bindRuntime(vm, name, r.cancel)
	e.notify(schema.ExecEvent{Type: schema.ExecStarted, Filename: name})
	log.Info("exec start", "content_len", len(content))

	var timer *time.Timer
	if e.cfg.Timeout > 0 {
		timer = time.AfterFunc(e.cfg.Timeout, func() {
			vm.Interrupt("timeout")
		})
	}

	go func() {
		defer close(r.done)
		_, err := vm.RunString(content)
		if timer != nil {
			timer.Stop()
		}
		e.mu.Lock()
		if e.running[name] == r {
			delete(e.running, name)
		}
		e.mu.Unlock()
		switch {
		case err == nil:
			log.Info("exec end")
		case isInterrupt(err):
			e.notify(schema.ExecEvent{
				Type:     schema.ExecOutput,
				Filename: name,
				Content:  "[system] script stopped",
			})
			log.Info("exec stopped")
		default:
			e.notify(schema.ExecEvent{
				Type:     schema.ExecError,
				Filename: name,
				Error:    err.Error(),
			})
			log.Warn("exec failed", "err", err)
		}
		e.notify(schema.ExecEvent{Type: schema.ExecEnded, Filename: name})
	}()

	return schema.RunResult{Success: true}
}

// Stop interrupts the run for the given name. Unknown names are a no-op.
func (e *Engine) Stop(ctx context.Context, name schema.ScriptName) {
	_ = ctx
	e.mu.Lock()
	r, ok := e.running[name]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.log.With("name", name).Info("exec stop requested")
	e.stopRun(r)
}

// StopAll interrupts every running script and waits for them to finish.
func (e *Engine) StopAll() {
	e.mu.Lock()
	runs := make([]*run, 0, len(e.running))
	for _, r := range e.running {
		runs = append(runs, r)
	}
	e.mu.Unlock()
	for _, r := range runs {
		e.stopRun(r)
	}
	for _, r := range runs {
		<-r.done
	}
}

func (e *Engine) stopRun(r *run) {
	r.vm.Interrupt("stopped")
	select {
	case <-r.cancel:
	default:
		close(r.cancel)
	}
}

func (e *Engine) bindRuntime(vm *goja.Runtime, name schema.ScriptName, cancel chan struct{}) {
	emit := func(text string) {
		e.notify(schema.ExecEvent{
			Type:     schema.ExecOutput,
			Filename: name,
			Content:  text,
		})
	}
	printLine := func(args ...any) {
		emit(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	}
	_ = vm.Set("println", printLine)
	_ = vm.Set("printf", func(format string, args ...any) {
		emit(fmt.Sprintf(format, args...))
	})
	_ = vm.Set("sprintf", fmt.Sprintf)
	// sleep returns early on stop; the pending interrupt fires on the next
	// JS instruction.
	_ = vm.Set("sleep", func(ms int) {
		if ms <= 0 {
			return
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-cancel:
		}
	})
	console := vm.NewObject()
	_ = console.Set("log", printLine)
	_ = console.Set("error", printLine)
	_ = console.Set("warn", printLine)
	_ = vm.Set("console", console)
}

func isInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}
