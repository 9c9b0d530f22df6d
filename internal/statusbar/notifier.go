// Package statusbar 显示变化时通知状态栏（默认 i3blocks）重新读取当前歌词
package statusbar

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/lyrics"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "statusbar").Logger()
	return &l
}

// DefaultSignal linux 上的 SIGRTMIN+21
const DefaultSignal = 55

// Notifier 跟踪状态栏进程的 PID，每次显示变化时发送信号
type Notifier struct {
	process  string
	signal   syscall.Signal
	interval time.Duration

	pid      int
	pidMutex sync.RWMutex

	// 测试时替换
	findPID func(name string) (int, error)
	kill    func(pid int, sig syscall.Signal) error

	stopChan  chan struct{}
	isRunning bool
	runMutex  sync.Mutex
}

// NewNotifier 创建通知器，signal <= 0 使用 DefaultSignal，interval <= 0 使用 10s
func NewNotifier(process string, signal int, interval time.Duration) *Notifier {
	if signal <= 0 {
		signal = DefaultSignal
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Notifier{
		process:  process,
		signal:   syscall.Signal(signal),
		interval: interval,
		pid:      -1,
		findPID:  findPID,
		kill:     syscall.Kill,
	}
}

// Start 每隔 interval 刷新一次 PID
func (n *Notifier) Start() error {
	n.runMutex.Lock()
	defer n.runMutex.Unlock()

	if n.isRunning {
		return fmt.Errorf("notifier is already running")
	}

	if err := n.refreshPID(); err != nil {
		logger().Debug().Err(err).Str("process", n.process).Msg("Status bar not found yet")
	}

	n.stopChan = make(chan struct{})
	n.isRunning = true
	go n.monitorLoop(n.stopChan)

	logger().Info().Str("process", n.process).Int("signal", int(n.signal)).Msg("Status bar notifier started")
	return nil
}

// Stop 停止刷新
func (n *Notifier) Stop() {
	n.runMutex.Lock()
	defer n.runMutex.Unlock()

	if !n.isRunning {
		return
	}
	close(n.stopChan)
	n.isRunning = false
	logger().Info().Msg("Status bar notifier stopped")
}

func (n *Notifier) monitorLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := n.refreshPID(); err != nil {
				logger().Debug().Err(err).Msg("Failed to refresh status bar PID")
			}
		case <-stop:
			return
		}
	}
}

func (n *Notifier) refreshPID() error {
	pid, err := n.findPID(n.process)

	n.pidMutex.Lock()
	oldPID := n.pid
	if err != nil {
		n.pid = -1
	} else {
		n.pid = pid
	}
	n.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		logger().Info().Int("old_pid", oldPID).Int("pid", pid).Msg("Status bar PID updated")
	}
	return nil
}

// PID 最近一次找到的 PID，找不到为 -1
func (n *Notifier) PID() int {
	n.pidMutex.RLock()
	defer n.pidMutex.RUnlock()
	return n.pid
}

// Show 给状态栏发信号，进程不存在不算错误
func (n *Notifier) Show(d lyrics.Display) error {
	pid := n.PID()
	if pid <= 0 {
		logger().Debug().Str("process", n.process).Msg("No status bar process to notify")
		return nil
	}
	if err := n.kill(pid, n.signal); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", int(n.signal), pid, err)
	}
	return nil
}

// findPID 先用 pgrep, 失败再解析 ps aux
func findPID(name string) (int, error) {
	output, err := exec.Command("pgrep", "-f", name).Output()
	if err == nil {
		if pid, ok := firstPID(string(output)); ok {
			return pid, nil
		}
	}

	output, err = exec.Command("ps", "aux").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}
	if pid, ok := pidFromPS(string(output), name); ok {
		return pid, nil
	}
	return -1, fmt.Errorf("%s process not found", name)
}

func firstPID(pgrepOutput string) (int, bool) {
	self := os.Getpid()
	for _, line := range strings.Split(strings.TrimSpace(pgrepOutput), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid == self {
			continue
		}
		return pid, true
	}
	return -1, false
}

func pidFromPS(psOutput, name string) (int, bool) {
	for _, line := range strings.Split(psOutput, "\n") {
		if !strings.Contains(line, name) || strings.Contains(line, "grep") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if pid, err := strconv.Atoi(fields[1]); err == nil {
			return pid, true
		}
	}
	return -1, false
}
