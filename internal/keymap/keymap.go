package keymap

import "github.com/char5742/flipmouse/internal/consts"

// NotFound は未登録のスキャンコード・キーコードを示すセンチネル値
const NotFound = -1

// Entry は物理スキャンコードと正規化キーコードの対応を表す
type Entry struct {
	Scancode int // デバイス固有の生スキャン値
	Keycode  int // input-event-codes.hのキーコード
}

// Table は起動時に1つだけ選択される固定のキーマップ。
// 実行中に変更されることはない。
type Table struct {
	name    string
	entries []Entry
}

// キーパッド（mtk-kpd / matrix-keypad）用のキーマップ
var Keypad = &Table{
	name: "keypad",
	entries: []Entry{
		{35, consts.KeyUp},
		{9, consts.KeyDown},
		{19, consts.KeyLeft},
		{34, consts.KeyRight},
		{33, consts.KeyMenu}, // 上スクロール
		{2, consts.KeySend},  // 下スクロール
		{42, consts.KeyHelp}, // スターキー
	},
}

// ラップトップのキーボード用のキーマップ（開発用）
var Laptop = &Table{
	name: "laptop",
	entries: []Entry{
		{200, consts.KeyUp},
		{208, consts.KeyDown},
		{203, consts.KeyLeft},
		{205, consts.KeyRight},
		{17, consts.KeyMenu},
		{31, consts.KeySend},
		{88, consts.KeyHelp}, // F12キー
	},
}

// Name はキーマップの識別名を返す
func (t *Table) Name() string {
	return t.name
}

// LookupKeycode はスキャンコードに対応するキーコードを返す。
// テーブルは高々8エントリなので線形探索で十分。
func (t *Table) LookupKeycode(scancode int) int {
	for _, e := range t.entries {
		if e.Scancode == scancode {
			return e.Keycode
		}
	}
	return NotFound
}

// LookupScancode はキーコードに対応するスキャンコードを返す
func (t *Table) LookupScancode(keycode int) int {
	for _, e := range t.entries {
		if e.Keycode == keycode {
			return e.Scancode
		}
	}
	return NotFound
}

// ByName は設定ファイルのキーマップ名からテーブルを選択する。
// 未知の名前の場合はnilを返す。
func ByName(name string) *Table {
	switch name {
	case "keypad":
		return Keypad
	case "laptop":
		return Laptop
	}
	return nil
}
