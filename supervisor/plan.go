// Package supervisor generates the declarative process definitions consumed by
// the external supervisor daemon and drives its control CLI. Nothing in this
// package spawns a node process itself.
package supervisor

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// TasksFile is the task file name used at both the chain and data-root level.
const TasksFile = "tasks.ini"

// Process is one supervised process definition.
type Process struct {
	Name           string
	Directory      string
	Command        string
	AutoStart      bool
	AutoRestart    bool
	RedirectStderr bool
	// StartSecs is the minimum uptime before a start is considered successful.
	StartSecs     int
	StdoutLogfile string
}

// Plan is the declarative list of supervised processes for one file.
type Plan struct {
	Processes []Process
}

// NodeProcess builds the definition for one chain node. Directory and log
// paths use the supervisor's %(here)s expansion so the generated file stays
// relocatable with its data directory.
func NodeProcess(chainID, cmd string, index int, startFlags string) Process {
	directory := fmt.Sprintf("%%(here)s/node%d", index)
	command := fmt.Sprintf("%s start --home .", cmd)
	if startFlags != "" {
		command += " " + startFlags
	}
	return Process{
		Name:           fmt.Sprintf("%s-node%d", chainID, index),
		Directory:      directory,
		Command:        command,
		AutoStart:      true,
		AutoRestart:    true,
		RedirectStderr: true,
		StartSecs:      3,
		StdoutLogfile:  directory + ".log",
	}
}

// ChainPlan builds the per-chain plan: one process per validator.
func ChainPlan(chainID, cmd string, numNodes int, startFlags string) Plan {
	plan := Plan{}
	for i := 0; i < numNodes; i++ {
		plan.Processes = append(plan.Processes, NodeProcess(chainID, cmd, i, startFlags))
	}
	return plan
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func addProcess(file *ini.File, p Process) error {
	sec, err := file.NewSection("program:" + p.Name)
	if err != nil {
		return fmt.Errorf("section for %s: %w", p.Name, err)
	}
	pairs := [][2]string{
		{"directory", p.Directory},
		{"command", p.Command},
		{"autostart", boolString(p.AutoStart)},
		{"autorestart", boolString(p.AutoRestart)},
		{"redirect_stderr", boolString(p.RedirectStderr)},
		{"startsecs", fmt.Sprintf("%d", p.StartSecs)},
		{"stdout_logfile", p.StdoutLogfile},
	}
	for _, kv := range pairs {
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return fmt.Errorf("key %s for %s: %w", kv[0], p.Name, err)
		}
	}
	return nil
}

// WritePlan writes a plan as an ini task file.
func WritePlan(path string, plan Plan) error {
	file := ini.Empty()
	for _, p := range plan.Processes {
		if err := addProcess(file, p); err != nil {
			return err
		}
	}
	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// AppendProcess adds one process definition to an existing task file without
// touching the existing sections.
func AppendProcess(path string, p Process) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if err := addProcess(file, p); err != nil {
		return err
	}
	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteGroupFile writes the data-root umbrella config: supervisord settings,
// the control socket, an include of every chain's task file and, when
// relayerCommand is non-empty, a relayer process defaulted to not auto-start.
func WriteGroupFile(path string, chainIDs []string, relayerCommand string) error {
	file := ini.Empty()

	files := ""
	for i, chainID := range chainIDs {
		if i > 0 {
			files += " "
		}
		files += fmt.Sprintf("%%(here)s/%s/%s", chainID, TasksFile)
	}

	sections := []struct {
		name string
		kv   [][2]string
	}{
		{"include", [][2]string{{"files", files}}},
		{"supervisord", [][2]string{
			{"pidfile", "%(here)s/supervisord.pid"},
			{"nodaemon", "true"},
			{"logfile", "/dev/null"},
			{"logfile_maxbytes", "0"},
			{"strip_ansi", "true"},
		}},
		{"rpcinterface:supervisor", [][2]string{
			{"supervisor.rpcinterface_factory", "supervisor.rpcinterface:make_main_rpcinterface"},
		}},
		{"unix_http_server", [][2]string{{"file", "%(here)s/supervisor.sock"}}},
		{"supervisorctl", [][2]string{{"serverurl", "unix://%(here)s/supervisor.sock"}}},
	}
	for _, s := range sections {
		sec, err := file.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("section %s: %w", s.name, err)
		}
		for _, kv := range s.kv {
			if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
				return fmt.Errorf("key %s in %s: %w", kv[0], s.name, err)
			}
		}
	}

	if relayerCommand != "" {
		relayer := Process{
			Name:           "relayer-demo",
			Directory:      "%(here)s",
			Command:        relayerCommand,
			AutoStart:      false,
			AutoRestart:    true,
			RedirectStderr: true,
			StartSecs:      3,
			StdoutLogfile:  "%(here)s/relayer-demo.log",
		}
		if err := addProcess(file, relayer); err != nil {
			return err
		}
	}

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
