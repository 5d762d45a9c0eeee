package runner

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type fakeProcess struct {
	pid        int
	exit       chan ExitStatus
	waitErr    error
	termErr    error
	terminated atomic.Bool
	once       sync.Once
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exit: make(chan ExitStatus, 1)}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() (ExitStatus, error) {
	st := <-p.exit
	return st, p.waitErr
}

func (p *fakeProcess) Terminate() error {
	p.terminated.Store(true)
	if p.termErr != nil {
		return p.termErr
	}
	p.once.Do(func() { p.exit <- ExitStatus{Code: -1, Desc: "signal: terminated"} })
	return nil
}

func (p *fakeProcess) exitWith(code int) {
	p.once.Do(func() { p.exit <- ExitStatus{Code: code, Desc: fmt.Sprintf("exit status %d", code)} })
}

type spawnResult func(cmd Command) (Process, error)

type fakeSpawner struct {
	mu       sync.Mutex
	attempts []string
	cmds     []Command
	results  map[string]spawnResult
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{results: make(map[string]spawnResult)}
}

func (f *fakeSpawner) fail(name string) {
	f.results[name] = func(Command) (Process, error) {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
}

func (f *fakeSpawner) succeed(name string, p *fakeProcess) {
	f.results[name] = func(Command) (Process, error) { return p, nil }
}

func (f *fakeSpawner) Spawn(cmd Command) (Process, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, cmd.Name)
	f.cmds = append(f.cmds, cmd)
	result := f.results[cmd.Name]
	f.mu.Unlock()

	if result == nil {
		return nil, fmt.Errorf("no fake registered for %q", cmd.Name)
	}
	return result(cmd)
}

func (f *fakeSpawner) Attempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}
