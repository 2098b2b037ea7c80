package control

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// コマンドとして認識する語。先頭引数がこれに一致すると
// プロセスはクライアントとして動く。
var commands = []string{"enable", "disable", "status", "quit", "toggle"}

// IsCommand は文字列が制御コマンドかどうか返す
func IsCommand(s string) bool {
	for _, c := range commands {
		if s == c {
			return true
		}
	}
	return false
}

// Send はデーモンの制御ソケットへコマンドを1つ送り、応答行を返す。
// 接続できない場合はエラーを返す。
func Send(socketPath string, cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, 3*time.Second)
	if err != nil {
		return "", fmt.Errorf("制御ソケットに接続できませんでした: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("コマンドの送信に失敗しました: %w", err)
	}

	// デーモンは応答後にポインタ位置合わせで塞がることがあるため、
	// 応答1行だけを読んで切り上げる
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return "", fmt.Errorf("応答の読み取りに失敗しました: %w", err)
	}
	return strings.TrimRight(reply, "\n"), nil
}
