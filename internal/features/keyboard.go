package features

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/types"
	"github.com/char5742/flipmouse/internal/utils"
)

// Keyboard は排他制御した物理キーデバイスと、無効時に生のキー挙動を
// 再現するためのパススルー用クローンデバイスの組
type Keyboard struct {
	file    *os.File
	name    string
	path    string
	clone   *os.File
	grabbed bool
}

// OpenKeyboard はデバイスを読み取り、非ブロッキングモードで開く
func OpenKeyboard(path string) (*Keyboard, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}

	name, err := deviceName(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("デバイス名の取得に失敗しました: %w", err)
	}

	return &Keyboard{file: f, name: name, path: path}, nil
}

// deviceName はevdevが報告するデバイス名を取得する
func deviceName(file *os.File) (string, error) {
	buf := make([]byte, 256)

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		file.Fd(),
		uintptr(consts.EviocgName),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		return "", errno
	}

	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// Name はデバイス名を返す
func (k *Keyboard) Name() string {
	return k.name
}

// Path はデバイスファイルのパスを返す
func (k *Keyboard) Path() string {
	return k.path
}

// Fd は読み取り待ちに使うファイルディスクリプタを返す
func (k *Keyboard) Fd() int {
	return int(k.file.Fd())
}

// Grab はデバイスを専有する
func (k *Keyboard) Grab() error {
	if k.grabbed {
		return nil
	}
	if err := utils.IOCtl(k.file, consts.EVIOCGRAB, 1); err != nil {
		return fmt.Errorf("failed to grab device: %w", err)
	}
	k.grabbed = true
	return nil
}

// Release はデバイスの専有を解除する
func (k *Keyboard) Release() error {
	if !k.grabbed {
		return nil
	}
	if err := utils.IOCtl(k.file, consts.EVIOCGRAB, 0); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}
	k.grabbed = false
	return nil
}

// ReadEvent は生の入力イベントを1件だけ読み取る
func (k *Keyboard) ReadEvent() (types.Event, error) {
	var e types.Event
	size := binary.Size(e)
	buf := make([]byte, size)

	n, err := k.file.Read(buf)
	if err != nil {
		return e, err
	}
	if n != size {
		return e, fmt.Errorf("イベントレコードが不完全です: %dバイト", n)
	}

	e.Time.Sec = int64(binary.LittleEndian.Uint64(buf[0:8]))
	e.Time.Usec = int64(binary.LittleEndian.Uint64(buf[8:16]))
	e.Type = binary.LittleEndian.Uint16(buf[16:18])
	e.Code = binary.LittleEndian.Uint16(buf[18:20])
	e.Value = int32(binary.LittleEndian.Uint32(buf[20:24]))

	return e, nil
}

// CreateClone は物理デバイスのキー能力を引き写したuinputデバイスを作る。
// 専有したデバイスの代わりに、変換しないイベントをここへ流す。
func (k *Keyboard) CreateClone(uinputPath string) error {
	deviceFile, err := createDeviceFile(uinputPath)
	if err != nil {
		return fmt.Errorf("クローンデバイスを作成できませんでした: %v", err)
	}

	// 元デバイスの対応イベントタイプを問い合わせる
	evBits := make([]byte, 4)
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		k.file.Fd(),
		consts.EviocgBit(0, len(evBits)),
		uintptr(unsafe.Pointer(&evBits[0])),
	)
	if errno != 0 {
		_ = deviceFile.Close()
		return fmt.Errorf("対応イベントの取得に失敗しました: %v", errno)
	}

	// キーイベント: 元デバイスが持つ全キーコードを複製する
	if bitSet(evBits, consts.EvKey) {
		if err := registerDevice(deviceFile, uintptr(consts.EvKey)); err != nil {
			return err
		}

		keyBits := make([]byte, consts.KeyMax/8+1)
		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			k.file.Fd(),
			consts.EviocgBit(consts.EvKey, len(keyBits)),
			uintptr(unsafe.Pointer(&keyBits[0])),
		)
		if errno != 0 {
			_ = deviceFile.Close()
			return fmt.Errorf("対応キーの取得に失敗しました: %v", errno)
		}

		for code := 0; code < consts.KeyMax; code++ {
			if !bitSet(keyBits, code) {
				continue
			}
			if err := utils.IOCtl(deviceFile, consts.SetKeyBit, uintptr(code)); err != nil {
				_ = deviceFile.Close()
				return fmt.Errorf("キー入力種別の登録に失敗しました %v: %v", code, err)
			}
		}
	}

	// スキャンコードイベント
	if bitSet(evBits, consts.EvMsc) {
		if err := registerDevice(deviceFile, uintptr(consts.EvMsc)); err != nil {
			return err
		}
		if err := utils.IOCtl(deviceFile, consts.SetMscBit, uintptr(consts.MscScan)); err != nil {
			_ = deviceFile.Close()
			return fmt.Errorf("スキャンコードの登録に失敗しました: %v", err)
		}
	}

	// オートリピート設定
	if bitSet(evBits, consts.EvRep) {
		if err := registerDevice(deviceFile, uintptr(consts.EvRep)); err != nil {
			return err
		}
	}

	userDev := types.UserDev{
		Name: toUinputName([]byte(k.name)),
		ID: types.InputID{
			Bustype: consts.BusUsb,
			Vendor:  0x4711,
			Product: 0x0819,
			Version: 1,
		},
	}

	clone, err := createUinputDevice(deviceFile, userDev)
	if err != nil {
		return fmt.Errorf("uinputデバイスの作成に失敗しました: %v", err)
	}

	k.clone = clone
	return nil
}

// WriteEvent はパススルー用クローンへイベントを1件書き込む
func (k *Keyboard) WriteEvent(evType uint16, code uint16, value int32) error {
	if k.clone == nil {
		return nil
	}
	return writeEvent(k.clone, types.Event{Type: evType, Code: code, Value: value})
}

func (k *Keyboard) Close() error {
	if k.clone != nil {
		_ = releaseDevice(k.clone)
		_ = k.clone.Close()
		k.clone = nil
	}
	_ = k.Release()
	return k.file.Close()
}

// bitSet はビットマスク中の指定ビットが立っているか返す
func bitSet(bits []byte, n int) bool {
	return bits[n/8]&(1<<(n%8)) != 0
}
