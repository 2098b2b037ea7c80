package engine

import (
	"log"

	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/keymap"
	"github.com/char5742/flipmouse/internal/types"
)

// Action はイベント変換の結果を表す。イベントループはこの値で
// 出力先を決める。
type Action int

const (
	ActionMute           Action = iota // 破棄する
	ActionPassThrough                  // 無変更でパススルー側へ転送する
	ActionChanged                      // 書き換え済み。パススルー側へ転送する
	ActionChangedToMouse               // 書き換え済み。仮想マウス側へ転送する
)

// Translator は生の入力イベント1件をモード状態に照らして解釈し、
// 取るべきアクションを決める。イベントは必要に応じてその場で
// 書き換えられる。ブロックもI/Oも行わない。
type Translator struct {
	state  *ModeState
	keymap *keymap.Table
	seq    *Sequencer

	wheelSlowdown uint32 // スクロール間引き係数
	holdThreshold int64  // タップと長押しを分ける閾値（秒）

	// スクロールの間引きカウンタ。両スクロールキーで共有する。
	wheelCounter uint32
}

// NewTranslator はイベント変換器を作成する
func NewTranslator(state *ModeState, km *keymap.Table, seq *Sequencer, wheelSlowdown int, holdThresholdSecs int64) *Translator {
	if wheelSlowdown < 1 {
		wheelSlowdown = 1
	}
	return &Translator{
		state:         state,
		keymap:        km,
		seq:           seq,
		wheelSlowdown: uint32(wheelSlowdown),
		holdThreshold: holdThresholdSecs,
	}
}

// トグルキーかどうか。キーパッドはスターキー（KEY_HELP）、
// ラップトップはF12が該当する。
func isToggleKey(keycode int) bool {
	return keycode == consts.KeyHelp || keycode == consts.KeyF12
}

// Translate は1イベントを解釈してアクションを返す。
// 処理順序は固定: 長押しデフォルトボタン → トグル検出 →
// 無効時パススルー → マウスモードのキー割り当て。
func (t *Translator) Translate(ev *types.Event) Action {
	// トグルキーのスキャンコードは長押しデフォルトボタンの
	// 判定に使う。モードの有効・無効によらず処理する。
	if ev.Type == consts.EvMsc && ev.Code == consts.MscScan {
		if kc := t.keymap.LookupKeycode(int(ev.Value)); isToggleKey(kc) {
			return t.longPress(ev, uint16(kc))
		}
	}

	// トグルキー本体の押下・離上
	if ev.Type == consts.EvKey && isToggleKey(int(ev.Code)) {
		return t.toggle(ev)
	}

	// 無効時は物理キーの挙動をそのまま通す
	if !t.state.Enabled {
		return ActionPassThrough
	}

	return t.mouseEvent(ev)
}

// holdTime はトグルキーの押下継続時間（秒）を返す
func (t *Translator) holdTime(now int64) int64 {
	if t.state.ToggleHeldSince == 0 {
		return 0
	}
	return now - t.state.ToggleHeldSince
}

// longPress はトグルキーが閾値を超えて押し続けられたとき、
// デフォルトボタンのキーイベント（押下→離上の2連発）を合成する。
// 閾値未満のスキャンコードはすべて破棄する。
func (t *Translator) longPress(ev *types.Event, keycode uint16) Action {
	if t.holdTime(ev.Time.Sec) > t.holdThreshold {
		switch t.state.longPressStage {
		case 0:
			t.state.longPressStage = 1
			log.Println("デフォルトボタンを発火します")
			ev.Type = consts.EvKey
			ev.Code = keycode
			ev.Value = 1
			return ActionChanged
		case 1:
			t.state.longPressStage = 2
			ev.Type = consts.EvKey
			ev.Code = keycode
			ev.Value = 0
			return ActionChanged
		}
	}
	return ActionMute
}

// toggle はトグルキーのタップと長押しを区別する。
// タップ（閾値未満で離上）はモードを反転し、シーケンサーを
// 同期的に実行する。長押し後の離上はモードを変えない。
func (t *Translator) toggle(ev *types.Event) Action {
	switch {
	case ev.Value == 1:
		t.state.ToggleHeldSince = ev.Time.Sec
		return ActionChangedToMouse

	case ev.Value == 0 && t.state.ToggleHeldSince != 0:
		held := t.holdTime(ev.Time.Sec)
		t.state.ToggleHeldSince = 0
		t.state.longPressStage = 0

		if held < t.holdThreshold {
			was := t.state.Enabled
			t.state.Enabled = !t.state.Enabled
			t.seq.OnTransition(was, t.state.Enabled, "manual")
		}
		return ActionChangedToMouse

	default:
		// 離上済みのオートリピートなどは破棄する
		return ActionMute
	}
}

// mouseEvent はマウスモード中のキー割り当てを処理する
func (t *Translator) mouseEvent(ev *types.Event) Action {
	keycode := int(ev.Code)

	if ev.Type == consts.EvMsc {
		if ev.Code == consts.MscScan {
			if kc := t.keymap.LookupKeycode(int(ev.Value)); kc != keymap.NotFound {
				keycode = kc
			}
		}
	} else if ev.Type == consts.EvKey {
		// スキャンコード側で処理するキーはキーイベントを破棄し、
		// 二重反応を防ぐ
		if t.keymap.LookupScancode(keycode) != keymap.NotFound {
			return ActionMute
		}
	}

	switch keycode {
	case consts.KeyVolumeUp:
		if ev.Value == 1 {
			t.state.Speed++
			log.Printf("ポインタ速度を上げました: %d", t.state.Speed)
		}
		return ActionMute

	case consts.KeyVolumeDown:
		if ev.Value == 1 {
			t.state.Speed--
			if t.state.Speed < MinSpeed {
				t.state.Speed = MinSpeed
			}
			log.Printf("ポインタ速度を下げました: %d", t.state.Speed)
		}
		return ActionMute

	case consts.KeyEnter:
		// 決定キーを左クリックに変換する（押下・離上とも）
		ev.Type = consts.EvKey
		ev.Code = consts.BtnLeft
		return ActionChangedToMouse

	case consts.KeyB:
		if ev.Value == 1 {
			t.state.DragLocked = !t.state.DragLocked
			ev.Type = consts.EvKey
			ev.Code = consts.BtnLeft
			if t.state.DragLocked {
				ev.Value = 1
				log.Println("ドラッグロックを有効化しました")
			} else {
				ev.Value = 0
				log.Println("ドラッグロックを解除しました")
			}
			return ActionChangedToMouse
		}
		return ActionPassThrough

	case consts.KeyUp:
		ev.Type = consts.EvRel
		ev.Code = consts.RelY
		ev.Value = -t.state.Speed
		return ActionChangedToMouse

	case consts.KeyDown:
		ev.Type = consts.EvRel
		ev.Code = consts.RelY
		ev.Value = t.state.Speed
		return ActionChangedToMouse

	case consts.KeyLeft:
		ev.Type = consts.EvRel
		ev.Code = consts.RelX
		ev.Value = -t.state.Speed
		return ActionChangedToMouse

	case consts.KeyRight:
		ev.Type = consts.EvRel
		ev.Code = consts.RelX
		ev.Value = t.state.Speed
		return ActionChangedToMouse

	case consts.KeyMenu:
		if !t.wheelTick() {
			return ActionMute
		}
		ev.Type = consts.EvRel
		ev.Code = consts.RelWheel
		ev.Value = 1
		return ActionChangedToMouse

	case consts.KeySend:
		if !t.wheelTick() {
			return ActionMute
		}
		ev.Type = consts.EvRel
		ev.Code = consts.RelWheel
		ev.Value = -1
		return ActionChangedToMouse
	}

	return ActionPassThrough
}

// wheelTick は間引きカウンタを進め、このイベントを転送すべきか返す。
// カウンタは両スクロールキーで共有される。
func (t *Translator) wheelTick() bool {
	n := t.wheelCounter
	t.wheelCounter++
	return n%t.wheelSlowdown == 0
}
