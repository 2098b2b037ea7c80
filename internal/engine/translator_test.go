package engine

import (
	"syscall"
	"testing"

	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/keymap"
	"github.com/char5742/flipmouse/internal/types"
)

type recorded struct {
	evType uint16
	code   uint16
	value  int32
}

// recorderSink は書き込まれたイベントを記録する出力シンク
type recorderSink struct {
	events []recorded
	err    error
	calls  int
}

func (r *recorderSink) WriteEvent(evType uint16, code uint16, value int32) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, recorded{evType, code, value})
	return nil
}

// テスト用の調整値。待ち時間なしで実行する。
func testTuning() Tuning {
	tuning := DefaultTuning()
	tuning.Settle = 0
	return tuning
}

// 右下退避で書き込まれるイベント数（RelX + RelY + Syn を繰り返し回数分）
func parkEventCount(tuning Tuning) int {
	return tuning.ParkReps * 3
}

// 中央移動で書き込まれるイベント数（ステップごとに Rel + Syn）
func centerEventCount(tuning Tuning) int {
	xSteps := int((tuning.CenterLeft + tuning.CenterStep - 1) / tuning.CenterStep)
	ySteps := int((tuning.CenterUp + tuning.CenterStep - 1) / tuning.CenterStep)
	return (xSteps + ySteps) * 2
}

func newTestTranslator(t *testing.T) (*Translator, *ModeState, *recorderSink) {
	t.Helper()
	sink := &recorderSink{}
	state := NewModeState(4)
	seq := NewSequencer(sink, testTuning())
	tr := NewTranslator(state, keymap.Keypad, seq, 5, 1)
	return tr, state, sink
}

func keyEvent(sec int64, code uint16, value int32) types.Event {
	return types.Event{
		Time:  syscall.Timeval{Sec: sec},
		Type:  consts.EvKey,
		Code:  code,
		Value: value,
	}
}

func scanEvent(sec int64, scancode int32) types.Event {
	return types.Event{
		Time:  syscall.Timeval{Sec: sec},
		Type:  consts.EvMsc,
		Code:  consts.MscScan,
		Value: scancode,
	}
}

func TestDisabledPassThroughUnchanged(t *testing.T) {
	tr, _, _ := newTestTranslator(t)

	ev := keyEvent(100, consts.KeyUp, 1)
	if got := tr.Translate(&ev); got != ActionPassThrough {
		t.Fatalf("Translate = %v, want ActionPassThrough", got)
	}
	if ev.Type != consts.EvKey || ev.Code != consts.KeyUp || ev.Value != 1 {
		t.Errorf("event was rewritten: %+v", ev)
	}
}

func TestShortTapFlipsMode(t *testing.T) {
	tr, state, sink := newTestTranslator(t)

	press := keyEvent(100, consts.KeyHelp, 1)
	if got := tr.Translate(&press); got != ActionChangedToMouse {
		t.Fatalf("press: Translate = %v, want ActionChangedToMouse", got)
	}
	if state.ToggleHeldSince != 100 {
		t.Errorf("ToggleHeldSince = %d, want 100", state.ToggleHeldSince)
	}

	release := keyEvent(100, consts.KeyHelp, 0)
	if got := tr.Translate(&release); got != ActionChangedToMouse {
		t.Fatalf("release: Translate = %v, want ActionChangedToMouse", got)
	}
	if !state.Enabled {
		t.Error("short tap should enable mouse mode")
	}
	if state.ToggleHeldSince != 0 {
		t.Errorf("ToggleHeldSince = %d, want 0 after release", state.ToggleHeldSince)
	}

	// 有効化遷移: 右下退避＋中央移動が1回だけ走ること
	want := parkEventCount(testTuning()) + centerEventCount(testTuning())
	if len(sink.events) != want {
		t.Errorf("sequencer emitted %d events, want %d", len(sink.events), want)
	}
}

func TestLongHoldDoesNotFlip(t *testing.T) {
	tr, state, sink := newTestTranslator(t)

	press := keyEvent(100, consts.KeyHelp, 1)
	tr.Translate(&press)

	release := keyEvent(102, consts.KeyHelp, 0)
	if got := tr.Translate(&release); got != ActionChangedToMouse {
		t.Fatalf("release: Translate = %v, want ActionChangedToMouse", got)
	}
	if state.Enabled {
		t.Error("long hold must not flip mouse mode")
	}
	if state.ToggleHeldSince != 0 {
		t.Error("ToggleHeldSince should reset after release")
	}
	if len(sink.events) != 0 {
		t.Errorf("sequencer must not run, emitted %d events", len(sink.events))
	}
}

func TestHoldAtThresholdDoesNotFlip(t *testing.T) {
	tr, state, _ := newTestTranslator(t)

	press := keyEvent(100, consts.KeyHelp, 1)
	tr.Translate(&press)
	release := keyEvent(101, consts.KeyHelp, 0)
	tr.Translate(&release)

	if state.Enabled {
		t.Error("hold equal to the threshold must not flip mouse mode")
	}
}

func TestToggleAutorepeatMuted(t *testing.T) {
	tr, _, _ := newTestTranslator(t)

	repeat := keyEvent(100, consts.KeyHelp, 2)
	if got := tr.Translate(&repeat); got != ActionMute {
		t.Errorf("autorepeat: Translate = %v, want ActionMute", got)
	}

	// 押下記録がない状態での離上も破棄される
	release := keyEvent(100, consts.KeyHelp, 0)
	if got := tr.Translate(&release); got != ActionMute {
		t.Errorf("stray release: Translate = %v, want ActionMute", got)
	}
}

func TestManualToggleParity(t *testing.T) {
	tr, state, _ := newTestTranslator(t)

	for i := 0; i < 4; i++ {
		sec := int64(100 + i)
		press := keyEvent(sec, consts.KeyHelp, 1)
		tr.Translate(&press)
		release := keyEvent(sec, consts.KeyHelp, 0)
		tr.Translate(&release)
	}
	if state.Enabled {
		t.Error("even number of taps should restore the initial state")
	}
}

func TestLongPressDefaultButton(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	press := keyEvent(100, consts.KeyHelp, 1)
	tr.Translate(&press)

	// 閾値未満のスキャンコードは破棄される
	early := scanEvent(100, 42)
	if got := tr.Translate(&early); got != ActionMute {
		t.Fatalf("early scan: Translate = %v, want ActionMute", got)
	}

	// 閾値超過後、最初のスキャンで押下が合成される
	first := scanEvent(102, 42)
	if got := tr.Translate(&first); got != ActionChanged {
		t.Fatalf("first tick: Translate = %v, want ActionChanged", got)
	}
	if first.Type != consts.EvKey || first.Code != consts.KeyHelp || first.Value != 1 {
		t.Errorf("first tick event = %+v, want KeyHelp press", first)
	}

	// 2回目のスキャンで離上が合成される
	second := scanEvent(102, 42)
	if got := tr.Translate(&second); got != ActionChanged {
		t.Fatalf("second tick: Translate = %v, want ActionChanged", got)
	}
	if second.Value != 0 {
		t.Errorf("second tick value = %d, want 0", second.Value)
	}

	// 以降のスキャンは破棄される
	third := scanEvent(102, 42)
	if got := tr.Translate(&third); got != ActionMute {
		t.Fatalf("third tick: Translate = %v, want ActionMute", got)
	}

	// 長押し後の離上ではモードは変化しない
	release := keyEvent(103, consts.KeyHelp, 0)
	tr.Translate(&release)
	if !state.Enabled {
		t.Error("mode must remain enabled after long press")
	}
}

func TestLongPressFiresWhileDisabled(t *testing.T) {
	tr, state, _ := newTestTranslator(t)

	press := keyEvent(100, consts.KeyHelp, 1)
	tr.Translate(&press)

	first := scanEvent(102, 42)
	if got := tr.Translate(&first); got != ActionChanged {
		t.Fatalf("first tick: Translate = %v, want ActionChanged", got)
	}
	if state.Enabled {
		t.Error("long press path must not change the mode")
	}
}

func TestSpeedAdjustClampsAtOne(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	for i := 0; i < 10; i++ {
		ev := keyEvent(100, consts.KeyVolumeDown, 1)
		if got := tr.Translate(&ev); got != ActionMute {
			t.Fatalf("volume down: Translate = %v, want ActionMute", got)
		}
	}
	if state.Speed != MinSpeed {
		t.Errorf("Speed = %d, want %d", state.Speed, MinSpeed)
	}

	up := keyEvent(100, consts.KeyVolumeUp, 1)
	tr.Translate(&up)
	if state.Speed != MinSpeed+1 {
		t.Errorf("Speed = %d, want %d", state.Speed, MinSpeed+1)
	}

	// 離上では変化しない
	releaseUp := keyEvent(100, consts.KeyVolumeUp, 0)
	tr.Translate(&releaseUp)
	if state.Speed != MinSpeed+1 {
		t.Errorf("Speed changed on key release: %d", state.Speed)
	}
}

func TestDirectionalMotion(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	// 左方向キー（スキャンコード19）は速度分の負のX移動になる
	left := scanEvent(100, 19)
	if got := tr.Translate(&left); got != ActionChangedToMouse {
		t.Fatalf("left: Translate = %v, want ActionChangedToMouse", got)
	}
	if left.Type != consts.EvRel || left.Code != consts.RelX || left.Value != -4 {
		t.Errorf("left event = %+v, want REL_X -4", left)
	}

	down := scanEvent(100, 9)
	tr.Translate(&down)
	if down.Type != consts.EvRel || down.Code != consts.RelY || down.Value != 4 {
		t.Errorf("down event = %+v, want REL_Y +4", down)
	}
}

func TestKeymappedKeyEventMuted(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	// スキャンコード側で処理されるキーのEV_KEYは破棄される
	ev := keyEvent(100, consts.KeyLeft, 1)
	if got := tr.Translate(&ev); got != ActionMute {
		t.Errorf("Translate = %v, want ActionMute", got)
	}
}

func TestEnterBecomesLeftClick(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	press := keyEvent(100, consts.KeyEnter, 1)
	if got := tr.Translate(&press); got != ActionChangedToMouse {
		t.Fatalf("Translate = %v, want ActionChangedToMouse", got)
	}
	if press.Type != consts.EvKey || press.Code != consts.BtnLeft || press.Value != 1 {
		t.Errorf("event = %+v, want BTN_LEFT press", press)
	}

	release := keyEvent(100, consts.KeyEnter, 0)
	tr.Translate(&release)
	if release.Code != consts.BtnLeft || release.Value != 0 {
		t.Errorf("event = %+v, want BTN_LEFT release", release)
	}
}

func TestDragLockMirrorsState(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	first := keyEvent(100, consts.KeyB, 1)
	if got := tr.Translate(&first); got != ActionChangedToMouse {
		t.Fatalf("Translate = %v, want ActionChangedToMouse", got)
	}
	if !state.DragLocked || first.Code != consts.BtnLeft || first.Value != 1 {
		t.Errorf("drag lock on: event = %+v, locked = %v", first, state.DragLocked)
	}

	second := keyEvent(100, consts.KeyB, 1)
	tr.Translate(&second)
	if state.DragLocked || second.Value != 0 {
		t.Errorf("drag lock off: event = %+v, locked = %v", second, state.DragLocked)
	}
}

func TestWheelSlowdownSharedCounter(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	// メニューキー（33）と発信キー（2）を交互に10回。共有カウンタの
	// 剰余で先頭と6回目だけが転送される。
	var forwarded []recorded
	for i := 0; i < 10; i++ {
		scan := int32(33)
		if i%2 == 1 {
			scan = 2
		}
		ev := scanEvent(100, scan)
		got := tr.Translate(&ev)
		switch got {
		case ActionChangedToMouse:
			forwarded = append(forwarded, recorded{ev.Type, ev.Code, ev.Value})
		case ActionMute:
		default:
			t.Fatalf("press %d: unexpected action %v", i, got)
		}
	}

	if len(forwarded) != 2 {
		t.Fatalf("forwarded %d wheel events, want 2", len(forwarded))
	}
	if forwarded[0].code != consts.RelWheel || forwarded[0].value != 1 {
		t.Errorf("first wheel event = %+v, want REL_WHEEL +1", forwarded[0])
	}
	// 6回目（インデックス5）は発信キーなので下スクロール
	if forwarded[1].value != -1 {
		t.Errorf("second wheel event = %+v, want REL_WHEEL -1", forwarded[1])
	}
}

func TestUnmappedKeyPassesThrough(t *testing.T) {
	tr, state, _ := newTestTranslator(t)
	state.Enabled = true

	ev := keyEvent(100, 50 /* KEY_M */, 1)
	if got := tr.Translate(&ev); got != ActionPassThrough {
		t.Errorf("Translate = %v, want ActionPassThrough", got)
	}
}
