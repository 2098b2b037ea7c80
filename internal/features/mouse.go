package features

import (
	"fmt"
	"io"
	"os"

	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/types"
	"github.com/char5742/flipmouse/internal/utils"
)

// Mouse は合成イベントの出力先となる仮想マウスデバイス
type Mouse interface {
	WriteEvent(evType uint16, code uint16, value int32) error
	io.Closer
}

type virtualMouse struct {
	name       []byte
	deviceFile *os.File
}

// CreateMouse は相対移動・ホイール・左右ボタンを持つ仮想マウスを作成する
func CreateMouse(path string, name []byte) (Mouse, error) {
	fd, err := createMouse(path, name)
	if err != nil {
		return nil, err
	}

	return &virtualMouse{name: name, deviceFile: fd}, nil
}

func createMouse(path string, name []byte) (*os.File, error) {
	deviceFile, err := createDeviceFile(path)
	if err != nil {
		return nil, fmt.Errorf("仮想マウスデバイスを作成できませんでした: %v", err)
	}

	// キー入力イベント(EV_KEY)を登録する
	err = registerDevice(deviceFile, uintptr(consts.EvKey))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("キー入力イベント(EV_KEY)の登録に失敗しました: %v", err)
	}

	// マウスボタンを登録する
	for _, ev := range []int{
		consts.BtnLeft,  // マウス左ボタン
		consts.BtnRight, // マウス右ボタン
	} {
		if err = utils.IOCtl(deviceFile, consts.SetKeyBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("キー入力種別の登録に失敗しました %v: %v", ev, err)
		}
	}

	// 相対座標入力イベント(EV_REL)を登録する
	err = registerDevice(deviceFile, uintptr(consts.EvRel))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("相対座標入力イベント(EV_REL)の登録に失敗しました: %v", err)
	}

	// 移動軸とホイールを登録する
	for _, ev := range []int{
		consts.RelX,      // X軸の相対移動
		consts.RelY,      // Y軸の相対移動
		consts.RelWheel,  // 垂直ホイール
		consts.RelHWheel, // 水平ホイール
	} {
		if err = utils.IOCtl(deviceFile, consts.SetRelBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("相対座標軸の登録に失敗しました %v: %v", ev, err)
		}
	}

	userDev := types.UserDev{
		Name: toUinputName(name),
		ID: types.InputID{
			Bustype: consts.BusUsb,
			Vendor:  0x4711,
			Product: 0x0818,
			Version: 1,
		},
	}

	fd, err := createUinputDevice(deviceFile, userDev)
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("uinputデバイスの作成に失敗しました: %v", err)
	}

	return fd, nil
}

// WriteEvent はイベントを1件書き込む。同期イベントは呼び出し側が送る。
func (vm *virtualMouse) WriteEvent(evType uint16, code uint16, value int32) error {
	return writeEvent(vm.deviceFile, types.Event{Type: evType, Code: code, Value: value})
}

func (vm *virtualMouse) Close() error {
	_ = releaseDevice(vm.deviceFile)
	return vm.deviceFile.Close()
}
