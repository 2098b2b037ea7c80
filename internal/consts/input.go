package consts

// 入力イベントタイプの定数（input-event-codes.hより）
const (
	EvSyn = 0x00 // 同期イベント
	EvKey = 0x01 // キーイベント
	EvRel = 0x02 // 相対座標イベント
	EvMsc = 0x04 // その他イベント（スキャンコードなど）
	EvRep = 0x14 // オートリピート設定
)

// 相対座標イベントコード
const (
	RelX      = 0x00 // X軸の相対移動
	RelY      = 0x01 // Y軸の相対移動
	RelHWheel = 0x06 // 水平ホイールの相対移動
	RelWheel  = 0x08 // ホイールの相対移動
)

// その他イベントコード
const (
	MscScan = 0x04 // 物理キーのスキャンコード
)

// 同期イベントコード
const (
	SynReport = 0 // イベント報告の同期
)

// キーコード（input-event-codes.hより、本モジュールが扱うもののみ）
const (
	KeyEnter      = 28  // 決定キー → 左クリックに変換
	KeyB          = 48  // ドラッグロック切り替えキー
	KeyF12        = 88  // ラップトップのトグルキー
	KeyUp         = 103 // 上方向キー
	KeyLeft       = 105 // 左方向キー
	KeyRight      = 106 // 右方向キー
	KeyDown       = 108 // 下方向キー
	KeyVolumeDown = 114 // 音量ダウン → ポインタ減速
	KeyVolumeUp   = 115 // 音量アップ → ポインタ加速
	KeyHelp       = 138 // キーパッドのトグルキー（スターキー）
	KeyMenu       = 139 // メニューキー → 上スクロール
	KeySend       = 231 // 発信キー → 下スクロール
)

// マウスボタンコード
const (
	BtnLeft  = 0x110 // マウス左ボタン
	BtnRight = 0x111 // マウス右ボタン
)
