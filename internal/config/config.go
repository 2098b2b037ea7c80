package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Paths   PathsConfig   `toml:"paths"`
	Devices DevicesConfig `toml:"devices"`
	Pointer PointerConfig `toml:"pointer"`
	Parking ParkingConfig `toml:"parking"`
}

// PathsConfig は外部とのやり取りに使うパスの設定
type PathsConfig struct {
	Socket string `toml:"socket"` // 制御ソケットのパス
	Status string `toml:"status"` // ステータスファイルのパス
	Log    string `toml:"log"`    // ログファイルのパス（空なら標準エラー出力）
	Uinput string `toml:"uinput"` // uinputデバイスファイルのパス
}

// SupportedDevice は対応する物理デバイスとそのキーマップの組
type SupportedDevice struct {
	Name   string `toml:"name"`   // evdevが報告するデバイス名
	Keymap string `toml:"keymap"` // "keypad" または "laptop"
}

// DevicesConfig は物理デバイス検出の設定
type DevicesConfig struct {
	Supported     []SupportedDevice `toml:"supported"`
	WaitForDevice bool              `toml:"wait_for_device"` // 起動時にデバイス出現を待つか
	WaitTimeout   time.Duration     `toml:"wait_timeout"`
}

// PointerConfig はポインタ操作の設定
type PointerConfig struct {
	DefaultSpeed   int32 `toml:"default_speed"`    // 方向キー1回あたりの移動量
	WheelSlowdown  int   `toml:"wheel_slowdown"`   // スクロールの間引き係数
	ToggleHoldSecs int64 `toml:"toggle_hold_secs"` // タップと長押しを分ける閾値（秒）
}

// ParkingConfig はモード切り替え時のポインタ位置合わせの設定
type ParkingConfig struct {
	ParkStep   int32         `toml:"park_step"`   // 右下退避1回あたりの移動量
	ParkReps   int           `toml:"park_reps"`   // 右下退避の繰り返し回数
	CenterStep int32         `toml:"center_step"` // 中央移動1ステップの最大移動量
	CenterLeft int32         `toml:"center_left"` // 右下から中央までの左方向の距離
	CenterUp   int32         `toml:"center_up"`   // 右下から中央までの上方向の距離
	Settle     time.Duration `toml:"settle"`      // 各ステップ後の待ち時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Socket: "/data/local/tmp/flipmouse/sock",
			Status: "/data/local/tmp/flipmouse/status",
			Log:    "",
			Uinput: "/dev/uinput",
		},
		Devices: DevicesConfig{
			Supported: []SupportedDevice{
				{Name: "mtk-kpd", Keymap: "keypad"},
				{Name: "matrix-keypad", Keymap: "keypad"},
				{Name: "AT Translated Set 2 keyboard", Keymap: "laptop"},
			},
			WaitForDevice: false,
			WaitTimeout:   30 * time.Second,
		},
		Pointer: PointerConfig{
			DefaultSpeed:   4,
			WheelSlowdown:  5,
			ToggleHoldSecs: 1,
		},
		Parking: ParkingConfig{
			ParkStep:   200,
			ParkReps:   40,
			CenterStep: 20,
			CenterLeft: 40,
			CenterUp:   60,
			Settle:     2 * time.Millisecond,
		},
	}
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "flipmouse"), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
