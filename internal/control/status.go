package control

import (
	"fmt"
	"os"
	"path/filepath"
)

// StatusFile は外部プロセスが監視するためのステータスのスナップショット。
// モードや速度が変わるたびに全体を書き直す。本システム自身は読み返さない。
type StatusFile struct {
	path string
}

// NewStatusFile はステータスファイルのライターを作成する
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Write は現在値でファイルを書き直す
func (sf *StatusFile) Write(enabled bool, speed int32, dragLocked bool) error {
	if err := os.MkdirAll(filepath.Dir(sf.path), 0777); err != nil {
		return err
	}
	f, err := os.OpenFile(sf.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(statusLine(enabled, speed, dragLocked))
	return err
}

// statusLine はステータス応答とステータスファイルで共有する書式
func statusLine(enabled bool, speed int32, dragLocked bool) string {
	return fmt.Sprintf("enabled=%d speed=%d drag=%d\n", boolToInt(enabled), speed, boolToInt(dragLocked))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
