package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Controller drives the process supervisor for one data root.
type Controller interface {
	// Reload makes the daemon pick up added or changed process definitions.
	Reload(ctx context.Context) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Status(ctx context.Context) (string, error)
}

// CtlClient controls a running daemon through the supervisorctl binary,
// pointed at the umbrella config in the data root.
type CtlClient struct {
	dataDir string
	logger  *zap.Logger
}

func NewCtlClient(dataDir string, logger *zap.Logger) *CtlClient {
	return &CtlClient{dataDir: dataDir, logger: logger}
}

func (c *CtlClient) configPath() string {
	return filepath.Join(c.dataDir, TasksFile)
}

func (c *CtlClient) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-c", c.configPath()}, args...)
	c.logger.Debug("exec supervisorctl", zap.Strings("args", full))
	out, err := exec.CommandContext(ctx, "supervisorctl", full...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("supervisorctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (c *CtlClient) Reload(ctx context.Context) error {
	_, err := c.run(ctx, "update")
	return err
}

func (c *CtlClient) Start(ctx context.Context, name string) error {
	_, err := c.run(ctx, "start", name)
	return err
}

func (c *CtlClient) Stop(ctx context.Context, name string) error {
	_, err := c.run(ctx, "stop", name)
	return err
}

func (c *CtlClient) Status(ctx context.Context) (string, error) {
	return c.run(ctx, "status")
}

// WaitReady blocks until the daemon's control socket exists and answers.
func (c *CtlClient) WaitReady(ctx context.Context) error {
	sock := filepath.Join(c.dataDir, "supervisor.sock")
	return retry.Do(func() error {
		if _, err := os.Stat(sock); err != nil {
			return fmt.Errorf("control socket not up: %w", err)
		}
		_, err := c.Status(ctx)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// Spawn launches the daemon in the foreground against the data root's
// umbrella config and returns the running command so the caller can forward
// signals and wait on exit.
func Spawn(ctx context.Context, dataDir string, logger *zap.Logger) (*exec.Cmd, error) {
	cfg := filepath.Join(dataDir, TasksFile)
	if _, err := os.Stat(cfg); err != nil {
		return nil, fmt.Errorf("supervisor config: %w", err)
	}
	cmd := exec.CommandContext(ctx, "supervisord", "-c", cfg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	logger.Info("starting supervisord", zap.String("config", cfg))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting supervisord: %w", err)
	}
	return cmd, nil
}
