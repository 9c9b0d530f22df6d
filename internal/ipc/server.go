// Package ipc 通过 unix socket 向桌面歌词窗口广播显示内容，每行一个 JSON 对象
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/lyrics"
	"lyrics-desktop/pkg/fileutil"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "ipc").Logger()
	return &l
}

// ErrAlreadyRunning 另一个实例已经持有锁
var ErrAlreadyRunning = errors.New("another lyrics server instance is already running")

type Server struct {
	socketPath   string
	mirrorPath   string
	listener     net.Listener
	clientConns  map[net.Conn]struct{}
	clientsLock  sync.Mutex
	last         []byte
	lastLock     sync.Mutex
	lockFile     *os.File
	lockFilePath string
	done         chan struct{}
}

// NewServer 创建 socketPath 上的服务，mirrorPath 非空时同时把当前歌词写入该文件
func NewServer(socketPath, mirrorPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		mirrorPath:   mirrorPath,
		clientConns:  make(map[net.Conn]struct{}),
		lockFilePath: socketPath + ".lock",
		done:         make(chan struct{}),
	}
}

func (s *Server) checkAndCleanOldLock() {
	content, err := os.ReadFile(s.lockFilePath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger().Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		logger().Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		logger().Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	logger().Info().Int("existing_pid", pid).Msg("Another process is still running")
}

// kill(pid, 0) 不发送信号, 只检查进程是否存在
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后再截断, 避免清掉正在运行的实例写入的PID
	if err := file.Truncate(0); err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger().Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
	s.lockFile.Close()
	os.Remove(s.lockFilePath)
	logger().Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

// Start 获取进程锁并开始接受客户端
func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger().Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger().Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	// 先注册再发送最后一条, 保证不会漏掉中间的广播
	s.lastLock.Lock()
	s.clientsLock.Lock()
	s.clientConns[conn] = struct{}{}
	s.clientsLock.Unlock()
	last := s.last
	var err error
	if last != nil {
		_, err = conn.Write(last)
	}
	s.lastLock.Unlock()

	logger().Info().Msg("Overlay client connected")
	if err != nil {
		logger().Error().Err(err).Msg("Failed to send initial display")
	}

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	s.clientsLock.Lock()
	delete(s.clientConns, conn)
	s.clientsLock.Unlock()
	conn.Close()
	logger().Info().Msg("Overlay client disconnected")
}

// Show 向所有客户端广播 d
func (s *Server) Show(d lyrics.Display) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode display: %w", err)
	}
	data = append(data, '\n')

	if s.mirrorPath != "" && d.Current != "" {
		if err := fileutil.WriteFileOverwrite(s.mirrorPath, []byte(d.Current+"\n"), 0644); err != nil {
			logger().Warn().Err(err).Str("path", s.mirrorPath).Msg("Failed to mirror lyrics")
		}
	}

	s.lastLock.Lock()
	defer s.lastLock.Unlock()
	s.last = data

	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for conn := range s.clientConns {
		if _, err := conn.Write(data); err != nil {
			logger().Error().Err(err).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.clientConns, conn)
		}
	}
	return nil
}

// Clients 已连接的客户端数量
func (s *Server) Clients() int {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientsLock.Lock()
	for conn := range s.clientConns {
		conn.Close()
	}
	s.clientsLock.Unlock()
	s.releaseLock()
}
