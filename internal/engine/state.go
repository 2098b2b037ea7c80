package engine

// ポインタ速度の下限。減速キーを何回押してもこれ未満にはならない。
const MinSpeed = 1

// ModeState は仮想マウスモードの共有状態。
// イベントループは単一スレッドで動くため、排他制御は不要。
// 書き換えるのはイベント変換と制御コマンド処理だけで、どちらも
// ループ内で逐次実行される。
type ModeState struct {
	Enabled         bool  // 仮想マウスモードが有効か
	ToggleHeldSince int64 // トグルキー押下時刻（秒）。0は未押下
	Speed           int32 // 方向キー1回あたりのポインタ移動量
	DragLocked      bool  // ドラッグロック中か

	// 長押しデフォルトボタンの進行段階（0=未発火、1=押下送出済み、2=送出完了）。
	// トグル検出とは独立した状態として持つ。
	longPressStage int
}

// NewModeState は初期状態（無効、速度はデフォルト値）を返す
func NewModeState(speed int32) *ModeState {
	if speed < MinSpeed {
		speed = MinSpeed
	}
	return &ModeState{Speed: speed}
}

// Snapshot は外部報告用に現在値の組を返す
func (s *ModeState) Snapshot() (enabled bool, speed int32, dragLocked bool) {
	return s.Enabled, s.Speed, s.DragLocked
}
