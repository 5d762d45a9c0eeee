package runner

import (
	"errors"
	"io"
	"os/exec"
)

// Command describes one interpreter invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// ExitStatus is what the backend reported when it went away.
type ExitStatus struct {
	Code int
	Desc string
}

// Process is a started child.
type Process interface {
	Pid() int
	// Wait blocks until the process exits. A non-nil error means the wait
	// itself failed, not that the process exited non-zero.
	Wait() (ExitStatus, error)
	Terminate() error
}

// Spawner starts processes.
type Spawner interface {
	Spawn(cmd Command) (Process, error)
}

// SpawnFunc adapts a function to Spawner.
type SpawnFunc func(cmd Command) (Process, error)

func (f SpawnFunc) Spawn(cmd Command) (Process, error) { return f(cmd) }

// ExecSpawner starts real OS processes.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(c Command) (Process, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = nil
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (ExitStatus, error) {
	err := p.cmd.Wait()
	if err == nil {
		return ExitStatus{Code: 0, Desc: "exit status 0"}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode(), Desc: exitErr.String()}, nil
	}

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	return ExitStatus{Code: code, Desc: err.Error()}, err
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return terminate(p.cmd.Process)
}
