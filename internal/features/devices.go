package features

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/char5742/flipmouse/internal/config"
)

// 入力デバイスのデバイスファイルが並ぶディレクトリ
const devInputDir = "/dev/input"

// Device は検出された対応デバイス
type Device struct {
	Name   string // evdevが報告するデバイス名
	Path   string // デバイスファイルのパス
	Keymap string // 設定で対応付けられたキーマップ名
}

// ScanSupported は/dev/input以下を走査し、対応リストにあるデバイスを返す
func ScanSupported(supported []config.SupportedDevice) ([]Device, error) {
	entries, err := os.ReadDir(devInputDir)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "event") {
			continue
		}
		path := filepath.Join(devInputDir, entry.Name())

		f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
		if err != nil {
			continue
		}
		name, err := deviceName(f)
		_ = f.Close()
		if err != nil {
			continue
		}

		for _, want := range supported {
			if name == want.Name {
				devices = append(devices, Device{Name: name, Path: path, Keymap: want.Keymap})
				break
			}
		}
	}

	return devices, nil
}

// WaitForSupported は対応デバイスが現れるまで/dev/inputを監視する。
// 起動時にまだキーパッドドライバが登録されていない環境向け。
func WaitForSupported(supported []config.SupportedDevice, timeout time.Duration) ([]Device, error) {
	// 監視開始前に一度走査しておく
	if devices, err := ScanSupported(supported); err == nil && len(devices) > 0 {
		return devices, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer watcher.Close()

	if err := watcher.Add(devInputDir); err != nil {
		return nil, fmt.Errorf("ディレクトリの監視に失敗しました: %s - %w", devInputDir, err)
	}
	log.Printf("対応デバイスの出現を待ちます (最大 %v)", timeout)

	// 連続するイベントをまとめて処理するためのしくみ
	const debounce = 500 * time.Millisecond
	rescanTimer := time.NewTimer(debounce)
	rescanTimer.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			return nil, fmt.Errorf("対応デバイスが %v 以内に見つかりませんでした", timeout)

		case <-rescanTimer.C:
			devices, err := ScanSupported(supported)
			if err != nil {
				log.Printf("デバイス再走査に失敗しました: %v", err)
				continue
			}
			if len(devices) > 0 {
				return devices, nil
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil, fmt.Errorf("イベントチャネルが閉じられました")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				rescanTimer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, fmt.Errorf("エラーチャネルが閉じられました")
			}
			log.Printf("ファイルシステム監視エラー: %v", err)
		}
	}
}
