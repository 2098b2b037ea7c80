package control

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/char5742/flipmouse/internal/engine"
)

// Server は制御ソケットの待ち受けとコマンド処理を担当する。
// 1接続につき1行のコマンドを受け取り、1行の応答を返して閉じる。
// 状態の書き換えはすべてイベントループのスレッドから呼ばれる。
type Server struct {
	fd     int
	path   string
	state  *engine.ModeState
	seq    *engine.Sequencer
	status *StatusFile
	stop   func()
}

// NewServer は制御サーバーを作成する。stopはquitコマンドで呼ばれる。
func NewServer(path string, state *engine.ModeState, seq *engine.Sequencer, status *StatusFile, stop func()) *Server {
	return &Server{fd: -1, path: path, state: state, seq: seq, status: status, stop: stop}
}

// Listen はソケットを作成して待ち受けを開始する
func (s *Server) Listen() error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("ソケットの作成に失敗しました: %w", err)
	}

	// 親ディレクトリと残存ソケットの掃除
	if err := os.MkdirAll(filepath.Dir(s.path), 0777); err != nil {
		unix.Close(fd)
		return err
	}
	_ = os.Remove(s.path)

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: s.path}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("ソケットのバインドに失敗しました: %w", err)
	}

	// アクセス制御はファイルシステムの権限に委ねる
	_ = os.Chmod(s.path, 0666)

	if err := unix.Listen(fd, 4); err != nil {
		unix.Close(fd)
		_ = os.Remove(s.path)
		return fmt.Errorf("ソケットの待ち受けに失敗しました: %w", err)
	}

	s.fd = fd
	log.Printf("制御ソケットを待ち受けます: %s", s.path)
	return nil
}

// Fd は待ち受けソケットのファイルディスクリプタを返す。
// 未初期化なら-1。
func (s *Server) Fd() int {
	return s.fd
}

// HandleReady は接続を1つ受け付け、コマンドを処理して応答を書き込む。
// 受け付けや読み取りの失敗はその接続を破棄するだけで致命的ではない。
func (s *Server) HandleReady() {
	cfd, _, err := unix.Accept(s.fd)
	if err != nil {
		return
	}
	defer unix.Close(cfd)

	buf := make([]byte, 128)
	n, err := unix.Read(cfd, buf)
	if err != nil || n <= 0 {
		return
	}

	reply, after := s.HandleCommand(string(buf[:n]))
	_, _ = unix.Write(cfd, []byte(reply))

	// シーケンサーの実行は応答を返してから行う。クライアントを
	// 位置合わせの完了まで待たせない。
	if after != nil {
		after()
	}
}

// HandleCommand はコマンド1行を解釈し、応答文字列と応答後に実行すべき
// 処理（モード遷移）を返す。未知のコマンドは状態を変えない。
func (s *Server) HandleCommand(raw string) (reply string, after func()) {
	cmd := strings.TrimLeft(raw, " \t\r\n")

	switch {
	case strings.HasPrefix(cmd, "enable"):
		was := s.state.Enabled
		s.state.Enabled = true
		s.writeStatus()
		return "ok enabled\n", func() {
			s.seq.OnTransition(was, true, "external")
		}

	case strings.HasPrefix(cmd, "disable"):
		was := s.state.Enabled
		s.state.Enabled = false
		s.writeStatus()
		return "ok disabled\n", func() {
			s.seq.OnTransition(was, false, "external")
		}

	case strings.HasPrefix(cmd, "status"):
		enabled, speed, drag := s.state.Snapshot()
		return statusLine(enabled, speed, drag), nil

	case strings.HasPrefix(cmd, "quit"):
		log.Println("quitコマンドを受信しました")
		s.stop()
		return "ok quitting\n", nil

	case strings.HasPrefix(cmd, "toggle"):
		was := s.state.Enabled
		s.state.Enabled = !was
		s.writeStatus()
		reply := "ok disabled\n"
		if s.state.Enabled {
			reply = "ok enabled\n"
		}
		now := s.state.Enabled
		return reply, func() {
			s.seq.OnTransition(was, now, "external")
		}

	default:
		return "err unknown_command\n", nil
	}
}

func (s *Server) writeStatus() {
	if s.status == nil {
		return
	}
	enabled, speed, drag := s.state.Snapshot()
	if err := s.status.Write(enabled, speed, drag); err != nil {
		log.Printf("ステータスファイルの書き込みに失敗しました: %v", err)
	}
}

// Close はソケットを閉じてパスを片付ける
func (s *Server) Close() {
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
	_ = os.Remove(s.path)
}
