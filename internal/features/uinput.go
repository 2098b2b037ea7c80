package features

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/types"
	"github.com/char5742/flipmouse/internal/utils"
)

// デバイスファイルを作成する
func createDeviceFile(path string) (fd *os.File, err error) {
	deviceFile, err := os.OpenFile(path, syscall.O_WRONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, errors.New("デバイスファイルを開くのに失敗しました")
	}
	return deviceFile, err
}

// デバイスを解放する
func releaseDevice(deviceFile *os.File) error {
	return utils.IOCtl(deviceFile, consts.DevDestroy, uintptr(0))
}

// イベントタイプを登録する
func registerDevice(deviceFile *os.File, evType uintptr) error {
	err := utils.IOCtl(deviceFile, consts.SetEvBit, evType)
	if err != nil {
		defer deviceFile.Close()
		err = releaseDevice(deviceFile)
		if err != nil {
			return fmt.Errorf("デバイスを解放するのに失敗しました: %v", err)
		}
		return fmt.Errorf("無効なファイルハンドルがutils.IOCtlから返されました: %v", err)
	}
	return nil
}

// uinputデバイスを作成する
func createUinputDevice(deviceFile *os.File, dev types.UserDev) (fd *os.File, err error) {
	buf := new(bytes.Buffer)
	err = binary.Write(buf, binary.LittleEndian, dev)
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("ユーザーデバイスバッファの書き込みに失敗しました: %v", err)
	}
	_, err = deviceFile.Write(buf.Bytes())
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイス構造体をデバイスファイルに書き込むのに失敗しました: %v", err)
	}

	err = utils.IOCtl(deviceFile, consts.DevCreate, uintptr(0))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイスの作成に失敗しました: %v", err)
	}

	return deviceFile, err
}

// イベントを1件書き込む
func writeEvent(deviceFile *os.File, ev types.Event) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
		return fmt.Errorf("イベントをバッファに書き込むのに失敗しました: %v", err)
	}
	if _, err := deviceFile.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("イベントの書き込みに失敗しました: %v", err)
	}
	return nil
}

// 名前をuinput用の固定長配列に変換する
func toUinputName(name []byte) (uinputName [consts.MaxNameSize]byte) {
	var fixedSizeName [consts.MaxNameSize]byte
	copy(fixedSizeName[:], name)
	return fixedSizeName
}
